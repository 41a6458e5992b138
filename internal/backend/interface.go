// Package backend assembles the fee backend and the optional
// infrastructure around it from configuration.
package backend

import (
	"context"
	"errors"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/feeapi"
	"feeledger/internal/services"
	"feeledger/internal/session"
	"feeledger/internal/sheets"
	"feeledger/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds everything a command needs to run the ledger. Journal,
// Events and Exporter are nil when not configured.
type BackendResult struct {
	API      feeapi.API
	Session  *session.Session
	Journal  *storage.Journal
	Events   *amqp.Client
	Exporter sheets.LedgerExporter

	cleanups []CleanupFunc
}

// JournalStore returns the journal as an interface value that is nil when
// no journal is configured.
func (r *BackendResult) JournalStore() services.Journal {
	if r.Journal == nil {
		return nil
	}
	return r.Journal
}

// Publisher returns the AMQP client, or nil when events are disabled.
func (r *BackendResult) Publisher() services.Publisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

// Ready pings the journal when there is one.
func (r *BackendResult) Ready(ctx context.Context) error {
	if err := r.Session.Active(); err != nil {
		return err
	}
	if r.Journal == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.Journal.Ping(ctx)
}

func (r *BackendResult) addCleanup(f CleanupFunc) {
	r.cleanups = append(r.cleanups, f)
}

// Close ends the session and releases resources in reverse order of
// creation.
func (r *BackendResult) Close() error {
	var errs []error
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		if err := r.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.cleanups = nil
	if r.Session != nil {
		r.Session.Close()
	}
	return errors.Join(errs...)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// REST backend
	BaseURL string
	Token   string
	Timeout time.Duration

	// Memory backend seed directory
	DataDirectory string

	User session.User

	JournalDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	// RequireEvents turns a failed AMQP connection into an error.
	RequireEvents bool

	Sheets SheetsConfig
}

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	RESTBackend   BackendType = "rest"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RESTBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
