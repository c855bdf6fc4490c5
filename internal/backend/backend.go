// Package backend opens the record source selected by DATA_BACKEND.
package backend

import (
	"context"

	"whaling/internal/config"
	"whaling/internal/records"
)

// Type names a record backend.
type Type string

const (
	CSV    Type = "csv"
	XLSX   Type = "xlsx"
	XLS    Type = "xls"
	SQLite Type = "sqlite"
	Sheets Type = "sheets"
	S3     Type = "s3"
)

func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known
func (t Type) IsValid() bool {
	switch t {
	case CSV, XLSX, XLS, SQLite, Sheets, S3:
		return true
	default:
		return false
	}
}

// Config holds what the backends need to open.
type Config struct {
	Type Type

	// csv, xlsx and xls
	DataPath string

	// sqlite
	SQLiteDBPath string

	// sheets
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	// s3
	S3 records.S3Config
}

// ConfigFromAppConfig converts application config to backend config
func ConfigFromAppConfig(cfg *config.Config) Config {
	return Config{
		Type:                Type(cfg.DataBackend),
		DataPath:            cfg.DataPath,
		SQLiteDBPath:        cfg.SQLiteDBPath,
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
		GoogleSheetRange:    cfg.GoogleSheetRange,
		S3: records.S3Config{
			Bucket:    cfg.S3Bucket,
			Key:       cfg.S3Key,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
	}
}

// Result is an opened backend. Ready and Cleanup may be nil.
type Result struct {
	Source  records.Source
	Ready   func(ctx context.Context) error
	Cleanup func() error
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}
