package session

import (
	"errors"
	"testing"

	"feeledger/internal/core"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		user    User
		wantErr bool
	}{
		{"admin", "tok", User{ID: "1", Role: RoleAdmin}, false},
		{"missing token", " ", User{Role: RoleAdmin}, true},
		{"unknown role", "tok", User{Role: "principal"}, true},
		{"branch manager without branch", "tok", User{Role: RoleBranchManager}, true},
		{"branch manager with branch", "tok", User{Role: RoleBranchManager, BranchID: "7"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.token, tt.user)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCloseRevokesToken(t *testing.T) {
	s, err := New("secret", User{ID: "1", Role: RoleAccountant})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tok, err := s.Token(); err != nil || tok != "secret" {
		t.Fatalf("Token() = %q, %v", tok, err)
	}
	s.Close()
	s.Close()
	if _, err := s.Token(); !errors.Is(err, core.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := s.Active(); !errors.Is(err, core.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed from Active, got %v", err)
	}
}

func TestCanSeeBranch(t *testing.T) {
	mgr := User{Role: RoleBranchManager, BranchID: "3"}
	if !mgr.CanSeeBranch("3") || mgr.CanSeeBranch("4") {
		t.Fatalf("branch manager scoping is wrong")
	}
	if !(User{Role: RoleAdmin}).CanSeeBranch("4") {
		t.Fatalf("admin should see every branch")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Branch_Manager "); err != nil || r != RoleBranchManager {
		t.Fatalf("ParseRole = %q, %v", r, err)
	}
}
