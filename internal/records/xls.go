package records

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/anrid/xls"

	"whaling/internal/core"
)

// XLS reads the dataset from the first sheet of a legacy BIFF (.xls)
// workbook, the format older statistical exports still ship in.
type XLS struct {
	path string
}

var _ Source = (*XLS)(nil)

func NewXLS(path string) *XLS {
	return &XLS{path: path}
}

func (x *XLS) Load(_ context.Context) ([]core.Record, error) {
	f, err := os.Open(x.path)
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	defer f.Close()

	records, err := ReadXLS(f)
	if err != nil {
		return nil, fmt.Errorf("read xls %s: %w", x.path, err)
	}
	return records, nil
}

// ReadXLS parses records from the first sheet of the workbook in r.
func ReadXLS(r io.ReadSeeker) ([]core.Record, error) {
	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cols := make([]string, 0, row.LastCol()+1)
		for j := 0; j <= row.LastCol(); j++ {
			cols = append(cols, row.Col(j))
		}
		rows = append(rows, cols)
	}
	return ParseRows(rows)
}
