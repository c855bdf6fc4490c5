// Command whaling-import loads a CSV, XLSX or XLS export of the whaling dataset
// into the SQLite store used by the sqlite backend.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"whaling/internal/backend"
	"whaling/internal/cli"
	"whaling/internal/core"
	applog "whaling/internal/log"
	"whaling/internal/storage"
)

var (
	dbPath string
	format string
	dryRun bool
)

var rootCmd = &cobra.Command{
	Use:   "whaling-import [file]",
	Short: "Import whaling records into the SQLite store",
	Long: `Reads a CSV, XLSX or XLS file with the columns whaling_bay, year, hunts,
whales, skinn_values (and optionally latitude, longitude) and replaces the
records in the SQLite database.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Print the per-year totals stored in the database",
	Args:  cobra.NoArgs,
	RunE:  runTotals,
}

func main() {
	cfg, _ := cli.Init(applog.ComponentStorage, os.Stderr, false)

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	rootCmd.Flags().StringVar(&format, "format", "", "input format: csv, xlsx or xls (default: from file extension)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and summarize without writing")
	rootCmd.AddCommand(totalsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// inputType picks the reader from --format or the file extension.
func inputType(path string) (backend.Type, error) {
	f := strings.ToLower(format)
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch t := backend.Type(f); t {
	case backend.CSV, backend.XLSX, backend.XLS:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported input format %q", f)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	log := applog.FromContext(ctx).WithComponent(applog.ComponentStorage)

	typ, err := inputType(args[0])
	if err != nil {
		return err
	}
	in, err := backend.Open(ctx, backend.Config{Type: typ, DataPath: args[0]})
	if err != nil {
		return err
	}
	defer in.Close()
	recs, err := in.Source.Load(ctx)
	if err != nil {
		return err
	}
	totals := core.BuildYearTotals(recs)
	first, last, _ := totals.Bounds()
	fmt.Fprintf(cmd.OutOrStdout(), "parsed %d records, %d years (%d-%d)\n", len(recs), totals.Len(), first, last)
	if dryRun {
		return nil
	}

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.ReplaceAll(ctx, recs); err != nil {
		log.LogError(ctx, "Import failed", err, applog.OpImport, applog.NewFields().WithRecords(len(recs)))
		return err
	}
	n, err := repo.CountRecords(ctx)
	if err != nil {
		return err
	}
	log.Info("Import completed", applog.FieldOperation, applog.OpImport, applog.FieldRecords, n,
		"db", dbPath, "schema_version", repo.SchemaVersion())
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", n, dbPath)
	return nil
}

func runTotals(cmd *cobra.Command, _ []string) error {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	totals, err := repo.YearTotals(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range totals {
		fmt.Fprintf(out, "%d\t%s\t%.0f hunts\n", t.Year, core.FormatTotal(t.WhaleTotal), t.HuntTotal)
	}
	return nil
}
