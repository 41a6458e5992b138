package backend

import (
	"fmt"

	"feeledger/internal/config"
	"feeledger/internal/core"
	"feeledger/internal/session"
)

// localToken stands in for a bearer token when the memory backend is used.
const localToken = "local"

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.FeeBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.FeeBackend)
	}
	role, err := session.ParseRole(appConfig.SessionRole)
	if err != nil {
		return Config{}, err
	}

	token := appConfig.FeeAPIToken
	if token == "" && backendType == MemoryBackend {
		token = localToken
	}

	return Config{
		Type: backendType,

		BaseURL: appConfig.FeeAPIBaseURL,
		Token:   token,
		Timeout: appConfig.FeeAPITimeout,

		DataDirectory: appConfig.MemoryDataDir,

		User: session.User{
			ID:       core.ID(appConfig.SessionUserID),
			Name:     appConfig.SessionUserName,
			Role:     role,
			BranchID: core.ID(appConfig.SessionBranchID),
		},

		JournalDBPath: appConfig.JournalDBPath,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Sheets: SheetsConfig{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case RESTBackend:
		if c.BaseURL == "" {
			return fmt.Errorf("base URL is required for rest backend")
		}
		if c.Token == "" {
			return fmt.Errorf("API token is required for rest backend")
		}
	case MemoryBackend:
		// DataDirectory defaults to "data"
	}

	if c.RequireEvents && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required")
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{RESTBackend.String(), MemoryBackend.String()}
}
