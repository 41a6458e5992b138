package query

import (
	"testing"

	"feeledger/internal/core"
)

func fee(id, name, adm, course string, status core.Status, due core.Date, pending int64) core.FeeRecord {
	return core.FeeRecord{
		ID:            core.ID(id),
		Student:       core.StudentRef{FullName: name, AdmissionNumber: adm},
		CourseName:    course,
		Status:        status,
		DueDate:       due,
		PendingAmount: core.Cents(pending),
	}
}

func ids(records []core.FeeRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.ID)
	}
	return out
}

func equalIDs(got []core.FeeRecord, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

var sample = []core.FeeRecord{
	fee("1", "John Smith", "ADM-100", "Tally", core.StatusPending, core.NewDate(2025, 3, 1), 400),
	fee("2", "Priya Nair", "JOHN-001", "Excel", core.StatusPaid, core.NewDate(2025, 3, 31), 0),
	fee("3", "Arjun Das", "ADM-200", "tally", core.StatusAdvance, core.NewDate(2025, 4, 15), -50),
	fee("4", "Meera Iyer", "ADM-300", "Python", core.StatusPending, core.Date{}, 900),
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	got, err := FeeRecords.Apply(sample, Query{Search: "john"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !equalIDs(got, "1", "2") {
		t.Fatalf("search john = %v, want [1 2]", ids(got))
	}

	got, _ = FeeRecords.Apply(sample, Query{Search: "   "})
	if len(got) != len(sample) {
		t.Fatalf("blank search filtered records: %v", ids(got))
	}
}

func TestFilterByField(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"all means no filter", "all", []string{"1", "2", "3", "4"}},
		{"empty means no filter", "", []string{"1", "2", "3", "4"}},
		{"exact match", "Pending", []string{"1", "4"}},
		{"case matters", "pending", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FeeRecords.Apply(sample, Query{Filters: map[string]string{"status": tt.value}})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !equalIDs(got, tt.want...) {
				t.Errorf("status=%q got %v, want %v", tt.value, ids(got), tt.want)
			}
		})
	}
}

func TestDateRangeIncludesEndDay(t *testing.T) {
	tests := []struct {
		name     string
		from, to core.Date
		want     []string
	}{
		{"record on the to boundary is included", core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31), []string{"1", "2"}},
		{"from is inclusive", core.NewDate(2025, 3, 31), core.Date{}, []string{"2", "3"}},
		{"single day", core.NewDate(2025, 4, 15), core.NewDate(2025, 4, 15), []string{"3"}},
		{"undated records dropped", core.Date{}, core.NewDate(2030, 1, 1), []string{"1", "2", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FeeRecords.Apply(sample, Query{From: tt.from, To: tt.to})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !equalIDs(got, tt.want...) {
				t.Errorf("got %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestSortStableAndDirection(t *testing.T) {
	got, err := FeeRecords.Apply(sample, Query{SortKey: "course_name"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// "Tally" and "tally" tie and keep input order.
	if !equalIDs(got, "2", "4", "1", "3") {
		t.Fatalf("asc by course = %v", ids(got))
	}

	got, _ = FeeRecords.Apply(sample, Query{SortKey: "course_name", Direction: Desc})
	if !equalIDs(got, "1", "3", "4", "2") {
		t.Fatalf("desc by course = %v", ids(got))
	}

	got, _ = FeeRecords.Apply(sample, Query{SortKey: "pending_amount", Direction: Desc})
	if !equalIDs(got, "4", "1", "2", "3") {
		t.Fatalf("desc by pending = %v", ids(got))
	}

	got, _ = FeeRecords.Apply(sample, Query{SortKey: "due_date"})
	if !equalIDs(got, "4", "1", "2", "3") {
		t.Fatalf("asc by due date = %v", ids(got))
	}
}

func TestApplyComposesAndLeavesInputAlone(t *testing.T) {
	in := append([]core.FeeRecord(nil), sample...)
	got, err := FeeRecords.Apply(in, Query{
		Search:    "adm",
		Filters:   map[string]string{"status": "Pending"},
		From:      core.NewDate(2025, 1, 1),
		To:        core.NewDate(2025, 12, 31),
		SortKey:   "student_name",
		Direction: Asc,
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !equalIDs(got, "1") {
		t.Fatalf("composed query = %v, want [1]", ids(got))
	}
	if !equalIDs(in, "1", "2", "3", "4") {
		t.Fatalf("input reordered: %v", ids(in))
	}
}

func TestApplyRejectsUnknownFields(t *testing.T) {
	queries := []Query{
		{Search: "x", SearchFields: []string{"nope"}},
		{Filters: map[string]string{"nope": "1"}},
		{From: core.NewDate(2025, 1, 1), DateField: "nope"},
		{SortKey: "nope"},
		{SortKey: "status", Direction: "sideways"},
		{From: core.NewDate(2025, 2, 1), To: core.NewDate(2025, 1, 1)},
	}
	for i, q := range queries {
		if _, err := FeeRecords.Apply(sample, q); !core.IsValidation(err) {
			t.Errorf("query %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestStudentAndAssetSchemas(t *testing.T) {
	students := []core.Student{
		{ID: "s1", FullName: "John Smith", AdmissionNumber: "A-1"},
		{ID: "s2", FullName: "Kiran Rao", AdmissionNumber: "JOHN-001"},
		{ID: "s3", FullName: "Lata Sen", AdmissionNumber: "A-3"},
	}
	got, err := Students.Apply(students, Query{Search: "JoHn"})
	if err != nil || len(got) != 2 {
		t.Fatalf("student search = %v, %v", got, err)
	}

	transfers := []core.AssetTransfer{
		{ID: "t1", AssetName: "Projector", Quantity: 2, TransferDate: core.NewDate(2025, 6, 30)},
		{ID: "t2", AssetName: "Chairs", Quantity: 40, TransferDate: core.NewDate(2025, 7, 1)},
	}
	gotT, err := AssetTransfers.Apply(transfers, Query{To: core.NewDate(2025, 6, 30), SortKey: "quantity", Direction: Desc})
	if err != nil {
		t.Fatalf("asset query: %v", err)
	}
	if len(gotT) != 1 || gotT[0].ID != "t1" {
		t.Fatalf("asset date range = %+v", gotT)
	}
}

func TestPaginate(t *testing.T) {
	got, page := Paginate(sample, 2, 3)
	if len(got) != 1 || got[0].ID != "4" {
		t.Fatalf("page 2 = %v", ids(got))
	}
	if page.Total != 4 || page.TotalPages != 2 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	got, _ = Paginate(sample, 5, 3)
	if len(got) != 0 {
		t.Fatalf("page past the end returned %v", ids(got))
	}
	got, page = Paginate(sample, 0, 0)
	if len(got) != 4 || page.TotalPages != 1 {
		t.Fatalf("unpaged listing = %v %+v", ids(got), page)
	}
}
