package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"whaling/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores the record collection in a single SQLite file.
type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateRecords(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ReplaceAll swaps the stored collection for records in one transaction.
// Records are stored under their position in the slice.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, records []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(seq, whaling_bay, year, hunts, whales, skinn_values, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, rec.Location, rec.Year,
			rec.HuntCount, rec.WhaleCount, rec.SkinnValue, rec.Lat, rec.Lon); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Records replaced in SQLite", "count", len(records))
	return nil
}

// Load returns every stored record in load order.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seq, whaling_bay, year, hunts, whales,
		skinn_values, latitude, longitude FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var rec core.Record
		if err := rows.Scan(&rec.Seq, &rec.Location, &rec.Year, &rec.HuntCount,
			&rec.WhaleCount, &rec.SkinnValue, &rec.Lat, &rec.Lon); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		// keep Seq dense even if rows were removed by hand
		rec.Seq = len(out)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// CountRecords returns the number of stored records.
func (r *SQLiteRepository) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// YearTotals aggregates whale and hunt totals per year in SQL.
func (r *SQLiteRepository) YearTotals(ctx context.Context) ([]core.YearTotal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT year, SUM(whales), SUM(hunts)
		FROM records GROUP BY year ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("query year totals: %w", err)
	}
	defer rows.Close()

	var out []core.YearTotal
	for rows.Next() {
		var t core.YearTotal
		if err := rows.Scan(&t.Year, &t.WhaleTotal, &t.HuntTotal); err != nil {
			return nil, fmt.Errorf("scan year total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
