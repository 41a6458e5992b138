package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	BackendMemory = "memory"
	BackendREST   = "rest"
)

var (
	validBackends = []string{BackendMemory, BackendREST}
	validRoles    = []string{"admin", "branch_manager", "accountant"}
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Writes per client per minute; 0 disables limiting
	RateLimitPerMinute int

	// Fee backend
	FeeBackend    string
	FeeAPIBaseURL string
	FeeAPIToken   string
	FeeAPITimeout time.Duration
	MemoryDataDir string

	// Session established at startup
	SessionUserID   string
	SessionUserName string
	SessionRole     string
	SessionBranchID string

	// Operation journal; empty disables it
	JournalDBPath string

	// AMQP; empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	LookupCacheTTL time.Duration

	// Reminders
	ReminderCron         string
	ReminderDueSoonDays  int
	ReminderFollowUpDays int

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8082"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		FeeBackend:    getEnv("FEE_BACKEND", BackendMemory),
		FeeAPIBaseURL: getEnv("FEE_API_BASE_URL", ""),
		FeeAPIToken:   getEnv("FEE_API_TOKEN", ""),
		FeeAPITimeout: getEnvDuration("FEE_API_TIMEOUT", 15*time.Second),
		MemoryDataDir: getEnv("MEMORY_DATA_DIR", "data"),

		SessionUserID:   getEnv("SESSION_USER_ID", "1"),
		SessionUserName: getEnv("SESSION_USER_NAME", "admin"),
		SessionRole:     getEnv("SESSION_ROLE", "admin"),
		SessionBranchID: getEnv("SESSION_BRANCH_ID", ""),

		JournalDBPath: getEnvAllowEmpty("JOURNAL_DB_PATH", "./data/feeledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "feeledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		LookupCacheTTL: getEnvDuration("LOOKUP_CACHE_TTL", 5*time.Minute),

		ReminderCron:         getEnv("REMINDER_CRON", "0 8 * * *"),
		ReminderDueSoonDays:  getEnvInt("REMINDER_DUE_SOON_DAYS", 3),
		ReminderFollowUpDays: getEnvInt("REMINDER_FOLLOW_UP_DAYS", 7),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Fees"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}
}

// SheetsEnabled reports whether a spreadsheet export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.FeeBackend) {
		errs = append(errs, fmt.Sprintf("invalid fee backend '%s': must be one of %v", c.FeeBackend, validBackends))
	}
	if c.FeeBackend == BackendREST {
		if c.FeeAPIBaseURL == "" {
			errs = append(errs, "FEE_API_BASE_URL is required when using the rest backend")
		} else if u, err := url.Parse(c.FeeAPIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid fee API base URL '%s': must be an http or https URL", c.FeeAPIBaseURL))
		}
		if c.FeeAPIToken == "" {
			errs = append(errs, "FEE_API_TOKEN is required when using the rest backend")
		}
	}
	if c.FeeAPITimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid fee API timeout %v: must be positive", c.FeeAPITimeout))
	}

	if !slices.Contains(validRoles, c.SessionRole) {
		errs = append(errs, fmt.Sprintf("invalid session role '%s': must be one of %v", c.SessionRole, validRoles))
	}
	if c.SessionRole == "branch_manager" && c.SessionBranchID == "" {
		errs = append(errs, "SESSION_BRANCH_ID is required for branch managers")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LookupCacheTTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid lookup cache TTL %v: must be positive", c.LookupCacheTTL))
	}

	if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
		errs = append(errs, fmt.Sprintf("invalid reminder schedule '%s': %v", c.ReminderCron, err))
	}
	if c.ReminderDueSoonDays < 1 {
		errs = append(errs, fmt.Sprintf("invalid due-soon window %d: must be at least 1 day", c.ReminderDueSoonDays))
	}
	if c.ReminderFollowUpDays < 1 {
		errs = append(errs, fmt.Sprintf("invalid follow-up interval %d: must be at least 1 day", c.ReminderFollowUpDays))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheet export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable override the default.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
