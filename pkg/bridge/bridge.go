// Package bridge exposes the callable entry points consumed by the host's
// function dispatch layer: a liveness greeting, table info, table stats and
// a jsonb row scan. Each call is a single linear pipeline of open, operate,
// close; errors cross the boundary as structured failures, never as empty or
// partial result sets.
package bridge

import (
	"context"

	"github.com/pglance/pglance/pkg/scanner"
	"github.com/pglance/pglance/pkg/value"
)

// Bridge binds the entry points to one scan runtime.
type Bridge struct {
	rt *scanner.Runtime
}

// New creates a bridge on the given runtime.
func New(rt *scanner.Runtime) *Bridge { return &Bridge{rt: rt} }

// Hello is the liveness probe. No failure mode.
func (b *Bridge) Hello() string { return "Hello, pglance" }

// ColumnInfo is one row of the table-info result set.
type ColumnInfo struct {
	ColumnName string `json:"column_name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
}

// TableInfo returns one row per top-level column, in source order. Callers
// re-sort if they want a different order.
func (b *Bridge) TableInfo(path string) ([]ColumnInfo, error) {
	h, err := b.rt.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	cols := h.Columns()
	res := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		res = append(res, ColumnInfo{ColumnName: c.Name, DataType: c.Type.Name(), Nullable: c.Nullable})
	}
	return res, nil
}

// TableStats is the single-row stats result.
type TableStats struct {
	Version    int64 `json:"version"`
	NumRows    int64 `json:"num_rows"`
	NumColumns int32 `json:"num_columns"`
}

// TableStats reports version, row count and column count from dataset
// metadata only. Repeated calls on an unmodified dataset are identical.
func (b *Bridge) TableStats(path string) (TableStats, error) {
	h, err := b.rt.Open(path)
	if err != nil {
		return TableStats{}, err
	}
	defer h.Close()

	st := h.Stats()
	return TableStats{
		Version:    int64(st.Version), // nolint:gosec // manifest numbers start at 1
		NumRows:    st.NumRows,
		NumColumns: int32(st.NumColumns), // nolint:gosec
	}, nil
}

// ScanJSONB returns one ordered object per scanned record; the keys of every
// object equal the column names TableInfo reports for the same path. A nil
// limit scans everything, limit 0 yields no rows without touching the data.
func (b *Bridge) ScanJSONB(ctx context.Context, path string, limit *int64) ([]value.Object, error) {
	h, err := b.rt.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	return h.Scan(ctx, limit)
}
