package backend

import (
	"context"
	"fmt"
	"log/slog"

	applog "whaling/internal/log"
	"whaling/internal/records"
	"whaling/internal/storage"
)

// Open creates the record source for cfg.Type.
func Open(ctx context.Context, cfg Config) (*Result, error) {
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	var (
		res *Result
		err error
	)
	switch cfg.Type {
	case CSV:
		res = &Result{Source: records.NewCSV(cfg.DataPath)}
	case XLSX:
		res = &Result{Source: records.NewXLSX(cfg.DataPath)}
	case XLS:
		res = &Result{Source: records.NewXLS(cfg.DataPath)}
	case SQLite:
		res, err = openSQLite(cfg)
	case Sheets:
		res, err = openSheets(ctx, cfg)
	case S3:
		res, err = openS3(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Initialized record backend",
		applog.FieldComponent, applog.ComponentRecords,
		applog.FieldBackend, cfg.Type.String())
	return res, nil
}

func openSQLite(cfg Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	return &Result{Source: repo, Ready: repo.Ping, Cleanup: repo.Close}, nil
}

func openSheets(ctx context.Context, cfg Config) (*Result, error) {
	src, err := records.NewSheets(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetRange)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets source: %w", err)
	}
	return &Result{Source: src}, nil
}

func openS3(ctx context.Context, cfg Config) (*Result, error) {
	src, err := records.NewS3(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 source: %w", err)
	}
	return &Result{Source: src}, nil
}
