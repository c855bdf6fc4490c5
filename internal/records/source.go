// Package records loads the whaling record collection from its configured
// data source.
package records

import (
	"context"
	"errors"

	"whaling/internal/core"
)

// Source supplies the full record collection once at startup.
type Source interface {
	Load(ctx context.Context) ([]core.Record, error)
}

var ErrMissingColumn = errors.New("missing required column")

// Memory is a fixed in-memory record collection.
type Memory struct {
	records []core.Record
}

var _ Source = (*Memory)(nil)

// NewMemory renumbers records by position.
func NewMemory(records []core.Record) *Memory {
	out := make([]core.Record, len(records))
	for i, r := range records {
		r.Seq = i
		out[i] = r
	}
	return &Memory{records: out}
}

// Load returns a copy of the collection.
func (m *Memory) Load(_ context.Context) ([]core.Record, error) {
	return append([]core.Record(nil), m.records...), nil
}
