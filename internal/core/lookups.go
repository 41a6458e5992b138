package core

// Entities owned by other screens. The fee ledger only reads them to fill
// selection lists and to search students.
type (
	Course struct {
		ID       ID     `json:"id"`
		Name     string `json:"course_name"`
		Price    Money  `json:"price"`
		Duration string `json:"duration,omitempty"`
	}

	Branch struct {
		ID   ID     `json:"id"`
		Name string `json:"branch_name"`
		Code string `json:"branch_code,omitempty"`
	}

	FeeStructure struct {
		ID           ID     `json:"id"`
		CourseID     ID     `json:"course_id"`
		Name         string `json:"name"`
		Amount       Money  `json:"amount"`
		Installments int    `json:"installments"`
	}

	Student struct {
		ID              ID     `json:"id"`
		FullName        string `json:"full_name"`
		AdmissionNumber string `json:"admission_number"`
		BranchID        ID     `json:"branch_id"`
		CourseName      string `json:"course_name,omitempty"`
		Status          string `json:"status,omitempty"`
		AdmissionDate   Date   `json:"admission_date"`
	}

	AssetTransfer struct {
		ID           ID     `json:"id"`
		AssetName    string `json:"asset_name"`
		AssetCode    string `json:"asset_code"`
		FromBranchID ID     `json:"from_branch_id"`
		ToBranchID   ID     `json:"to_branch_id"`
		Status       string `json:"status"`
		Quantity     int64  `json:"quantity"`
		TransferDate Date   `json:"transfer_date"`
	}
)

// Ref returns the snapshot a fee record keeps of the student.
func (s Student) Ref() StudentRef {
	return StudentRef{
		ID:              s.ID,
		FullName:        s.FullName,
		AdmissionNumber: s.AdmissionNumber,
		BranchID:        s.BranchID,
	}
}
