package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/feeapi"
	"feeledger/internal/feeapi/memory"
	"feeledger/internal/feeapi/rest"
	"feeledger/internal/log"
	"feeledger/internal/session"
	gsheet "feeledger/internal/sheets/google"
	sheetsmem "feeledger/internal/sheets/memory"
	"feeledger/internal/storage"
)

const defaultTimeout = 15 * time.Second

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the session, the fee API and whatever optional
// infrastructure config names. On error everything opened so far is closed.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sess, err := session.New(config.Token, config.User)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	res := &BackendResult{Session: sess}

	if res.API, err = f.createAPI(config, sess); err == nil {
		err = f.openJournal(config, res)
	}
	if err == nil {
		err = f.connectEvents(config, res)
	}
	if err == nil {
		err = f.createExporter(ctx, config, res)
	}
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return res, nil
}

func (f *DefaultFactory) createAPI(config Config, sess *session.Session) (feeapi.API, error) {
	switch config.Type {
	case RESTBackend:
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client, err := rest.New(config.BaseURL, sess,
			rest.WithHTTPClient(&http.Client{Timeout: timeout}),
			rest.WithLogger(f.logger.Logger))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize fee API client: %w", err)
		}
		f.logger.Info("Initialized REST fee backend", "base_url", config.BaseURL, "timeout", timeout)
		return client, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		store, err := memory.NewFromFiles(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
		f.logger.Info("Initialized memory fee backend", "data_directory", dataDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) openJournal(config Config, res *BackendResult) error {
	if config.JournalDBPath == "" {
		f.logger.Info("Operation journal disabled")
		return nil
	}
	j, err := storage.NewJournal(config.JournalDBPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	res.Journal = j
	res.addCleanup(j.Close)
	f.logger.Info("Opened operation journal", "db_path", config.JournalDBPath, "schema_version", j.SchemaVersion())
	return nil
}

func (f *DefaultFactory) connectEvents(config Config, res *BackendResult) error {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		if config.RequireEvents {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil
	}
	res.Events = client
	res.addCleanup(client.Close)
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return nil
}

// createExporter uses Google Sheets when a spreadsheet is configured. The
// memory backend otherwise exports to an in-process table.
func (f *DefaultFactory) createExporter(ctx context.Context, config Config, res *BackendResult) error {
	if config.Sheets.SpreadsheetID == "" {
		if config.Type == MemoryBackend {
			res.Exporter = sheetsmem.New()
		}
		return nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.Sheets.SpreadsheetID,
		SheetName:       config.Sheets.SheetName,
		CredentialsJSON: config.Sheets.CredentialsJSON,
		CredentialsFile: config.Sheets.CredentialsFile,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	res.Exporter = client
	f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.Sheets.SpreadsheetID)
	return nil
}
