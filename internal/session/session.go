// Package session holds the signed-in user and their API token. A Session is
// created at login, handed to everything that talks to the backend, and closed
// at logout.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"feeledger/internal/core"
)

type Role string

const (
	RoleAdmin         Role = "admin"
	RoleBranchManager Role = "branch_manager"
	RoleAccountant    Role = "accountant"
)

// ParseRole accepts the canonical names, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleBranchManager, RoleAccountant:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type User struct {
	ID       core.ID `json:"id"`
	Name     string  `json:"name"`
	Role     Role    `json:"role"`
	BranchID core.ID `json:"branch_id,omitempty"`
}

// CanSeeBranch reports whether the user may view records of a branch. Branch
// managers are limited to their own branch.
func (u User) CanSeeBranch(branchID core.ID) bool {
	if u.Role != RoleBranchManager {
		return true
	}
	return branchID == u.BranchID
}

type Session struct {
	mu        sync.RWMutex
	token     string
	user      User
	createdAt time.Time
	closed    bool
}

func New(token string, user User) (*Session, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("session token is required")
	}
	if _, err := ParseRole(string(user.Role)); err != nil {
		return nil, err
	}
	if user.Role == RoleBranchManager && user.BranchID.IsZero() {
		return nil, errors.New("branch manager session requires a branch id")
	}
	return &Session{token: token, user: user, createdAt: time.Now()}, nil
}

// Token returns the bearer token, or core.ErrSessionClosed after Close.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", core.ErrSessionClosed
	}
	return s.token, nil
}

func (s *Session) User() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Active returns core.ErrSessionClosed once the session has ended.
func (s *Session) Active() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.ErrSessionClosed
	}
	return nil
}

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Close ends the session and forgets the token. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.token = ""
}
