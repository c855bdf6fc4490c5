package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"whaling/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Logging
	LogLevel  string
	LogFormat string

	// Data source
	DataBackend string
	DataPath    string

	// Database
	SQLiteDBPath string

	// AMQP (optional remote year selection)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	// S3-compatible object store
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool

	// View
	InitialYear  int
	InitialDelay time.Duration
	FadeOutDelay time.Duration
	RefreshDelay time.Duration
	FadeInDelay  time.Duration
}

var validBackends = []string{"csv", "xlsx", "xls", "sqlite", "sheets", "s3"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATA_BACKEND", "csv"),
		DataPath:    getEnv("DATA_PATH", "./data/FaroeWhaling.csv"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/whaling.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "whaling"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""), // empty: one exclusive queue per view

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:    getEnv("GOOGLE_SHEET_RANGE", "Whaling!A:G"),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Key:       getEnv("S3_KEY", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3PathStyle: strings.EqualFold(getEnv("S3_PATH_STYLE", "false"), "true"),

		InitialYear:  getEnvInt("INITIAL_YEAR", core.DefaultYear),
		InitialDelay: getEnvDuration("INITIAL_DELAY", 250*time.Millisecond),
		FadeOutDelay: getEnvDuration("FADE_OUT_DELAY", 200*time.Millisecond),
		RefreshDelay: getEnvDuration("REFRESH_DELAY", 5*time.Millisecond),
		FadeInDelay:  getEnvDuration("FADE_IN_DELAY", 50*time.Millisecond),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "csv", "xlsx", "xls":
		if c.DataPath == "" {
			errors = append(errors, fmt.Sprintf("data path cannot be empty when using %s backend", c.DataBackend))
		} else if _, err := os.Stat(c.DataPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("data file does not exist: %s", c.DataPath))
		} else if c.DataBackend != "csv" && !strings.EqualFold(filepath.Ext(c.DataPath), "."+c.DataBackend) {
			errors = append(errors, fmt.Sprintf("data path '%s' must be an .%s file for %s backend", c.DataPath, c.DataBackend, c.DataBackend))
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetRange == "" {
			errors = append(errors, "Google sheet range is required when using sheets backend")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Key == "" {
			errors = append(errors, "S3 bucket and key are required when using s3 backend")
		}
		if c.S3Endpoint != "" {
			if u, err := url.Parse(c.S3Endpoint); err != nil || u.Host == "" {
				errors = append(errors, fmt.Sprintf("invalid S3 endpoint '%s'", c.S3Endpoint))
			}
		}
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
	}

	if c.InitialYear < 1 {
		errors = append(errors, fmt.Sprintf("invalid initial year %d: must be positive", c.InitialYear))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"initial delay", c.InitialDelay},
		{"fade-out delay", c.FadeOutDelay},
		{"refresh delay", c.RefreshDelay},
		{"fade-in delay", c.FadeInDelay},
	} {
		if d.value < 0 || d.value > 5*time.Second {
			errors = append(errors, fmt.Sprintf("invalid %s %v: must be between 0 and 5s", d.name, d.value))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
