package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"whaling/internal/core"
)

// Column headers of the whaling dataset.
const (
	ColumnBay    = "whaling_bay"
	ColumnYear   = "year"
	ColumnHunts  = "hunts"
	ColumnWhales = "whales"
	ColumnSkinn  = "skinn_values"
)

// Header is the canonical column order used when writing the dataset.
var Header = []string{ColumnBay, ColumnYear, ColumnHunts, ColumnWhales, ColumnSkinn, "latitude", "longitude"}

type columns struct {
	bay, year, hunts, whales, skinn int
	lat, lon                        int // -1 when absent
}

func parseHeader(row []string) (columns, error) {
	cols := columns{bay: -1, year: -1, hunts: -1, whales: -1, skinn: -1, lat: -1, lon: -1}
	for i, name := range row {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnBay:
			cols.bay = i
		case ColumnYear:
			cols.year = i
		case ColumnHunts:
			cols.hunts = i
		case ColumnWhales:
			cols.whales = i
		case ColumnSkinn:
			cols.skinn = i
		case "lat", "latitude", "y":
			cols.lat = i
		case "lon", "long", "longitude", "x":
			cols.lon = i
		}
	}
	for name, idx := range map[string]int{
		ColumnBay:    cols.bay,
		ColumnYear:   cols.year,
		ColumnHunts:  cols.hunts,
		ColumnWhales: cols.whales,
		ColumnSkinn:  cols.skinn,
	} {
		if idx < 0 {
			return cols, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return cols, nil
}

// ParseRows turns a header row followed by data rows into records numbered
// by position. Blank rows are skipped. Row numbers in errors are 1-based and
// count the header.
func ParseRows(rows [][]string) ([]core.Record, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	cols, err := parseHeader(rows[0])
	if err != nil {
		return nil, err
	}

	var out []core.Record
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		r, err := cols.record(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		r.Seq = len(out)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c columns) record(row []string) (core.Record, error) {
	var (
		r   core.Record
		err error
	)
	r.Location = strings.TrimSpace(cell(row, c.bay))
	if r.Year, err = parseYear(cell(row, c.year)); err != nil {
		return r, err
	}
	if r.HuntCount, err = parseNumber(ColumnHunts, cell(row, c.hunts)); err != nil {
		return r, err
	}
	if r.WhaleCount, err = parseNumber(ColumnWhales, cell(row, c.whales)); err != nil {
		return r, err
	}
	if r.SkinnValue, err = parseNumber(ColumnSkinn, cell(row, c.skinn)); err != nil {
		return r, err
	}
	if c.lat >= 0 {
		if r.Lat, err = parseNumber("latitude", cell(row, c.lat)); err != nil {
			return r, err
		}
	}
	if c.lon >= 0 {
		if r.Lon, err = parseNumber("longitude", cell(row, c.lon)); err != nil {
			return r, err
		}
	}
	return r, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseYear(s string) (int, error) {
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	// spreadsheets hand back whole numbers as "1996.0"
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidYear, s)
	}
	return int(f), nil
}

func parseNumber(name, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, core.ErrNonFinite)
	}
	return f, nil
}
