package records

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	xlsx "github.com/360EntSecGroup-Skylar/excelize/v2"

	"whaling/internal/core"
)

// XLSX reads the dataset from the first sheet of a workbook.
type XLSX struct {
	path string
}

var _ Source = (*XLSX)(nil)

func NewXLSX(path string) *XLSX {
	return &XLSX{path: path}
}

func (x *XLSX) Load(_ context.Context) ([]core.Record, error) {
	f, err := os.Open(x.path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	records, err := ReadXLSX(f)
	if err != nil {
		return nil, fmt.Errorf("read xlsx %s: %w", x.path, err)
	}
	return records, nil
}

// ReadXLSX parses records from the first sheet of the workbook in r.
func ReadXLSX(r io.Reader) ([]core.Record, error) {
	wb, err := xlsx.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return ParseRows(rows)
}

// WriteXLSX writes records to w as a single-sheet workbook with the
// canonical header.
func WriteXLSX(w io.Writer, sheet string, records []core.Record) error {
	wb := xlsx.NewFile()
	if sheet != "" && sheet != "Sheet1" {
		wb.SetSheetName("Sheet1", sheet)
	} else {
		sheet = "Sheet1"
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		row := []interface{}{r.Location, r.Year, r.HuntCount, r.WhaleCount, r.SkinnValue, r.Lat, r.Lon}
		if err := wb.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := wb.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteTotalsXLSX writes one row per year with the whale and hunt totals.
func WriteTotalsXLSX(w io.Writer, totals []core.YearTotal) error {
	const sheet = "Totals"
	wb := xlsx.NewFile()
	wb.SetSheetName("Sheet1", sheet)

	header := []interface{}{"year", "whales", "hunts"}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, t := range totals {
		row := []interface{}{t.Year, t.WhaleTotal, t.HuntTotal}
		if err := wb.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := wb.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
