package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Gateway HTTP server
	Port string

	// Local store
	LocalDBPath string

	// Remote sync endpoint used by the tracker. Empty disables remote
	// sync entirely: the tracker then works local-only.
	SyncURL string

	// Gateway
	LockTimeout   time.Duration
	SheetsBackend string // "google" or "memory"

	// Google Sheets
	GoogleSpreadsheetID string

	// AMQP (optional sync event pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		LocalDBPath: getEnv("MW_DB_PATH", "./data/moneywise.db"),
		SyncURL:     getEnv("MW_SYNC_URL", ""),

		LockTimeout:   getEnvDuration("MW_LOCK_TIMEOUT", 10*time.Second),
		SheetsBackend: getEnv("MW_SHEETS_BACKEND", "google"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "moneywise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_snapshots"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.LocalDBPath == "" {
		errors = append(errors, "local database path cannot be empty")
	} else {
		dir := filepath.Dir(c.LocalDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create local database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SyncURL != "" {
		if parsed, err := url.Parse(c.SyncURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid sync URL '%s': %v", c.SyncURL, err))
		} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid sync URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
		}
	}

	validBackends := []string{"google", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.SheetsBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid sheets backend '%s': must be one of %v", c.SheetsBackend, validBackends))
	}
	if c.SheetsBackend == "google" && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using the google backend")
	}

	if c.LockTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be at least 1 second", c.LockTimeout))
	} else if c.LockTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid lock timeout %v: must be at most 1 minute", c.LockTimeout))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RemoteEnabled reports whether a sync endpoint is configured.
func (c *Config) RemoteEnabled() bool { return c.SyncURL != "" }

// AMQPEnabled reports whether the sync event pipeline is configured.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
