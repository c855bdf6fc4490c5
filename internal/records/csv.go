package records

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"whaling/internal/core"
)

// CSV reads the dataset from a comma separated file with a header row.
type CSV struct {
	path string
}

var _ Source = (*CSV)(nil)

func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

func (c *CSV) Load(_ context.Context) ([]core.Record, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", c.path, err)
	}
	return records, nil
}

// ReadCSV parses records from r.
func ReadCSV(r io.Reader) ([]core.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return ParseRows(rows)
}
