// Package scanner bridges the dataset reader's asynchronous batch stream
// into the synchronous, limit-bounded calls the relational host makes. Each
// call opens its own handle, scans to completion or early limit-stop before
// returning, and leaves nothing behind: there is no cross-call state and no
// cancellation channel beyond the row limit.
package scanner

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-pkgz/syncs"
	"github.com/google/uuid"

	"github.com/pglance/pglance/pkg/dataset"
	"github.com/pglance/pglance/pkg/schema"
	"github.com/pglance/pglance/pkg/value"
)

const (
	defaultBatchSize = 1024
	defaultWorkers   = 4
)

// Opts tune the scan runtime. Zero values take defaults.
type Opts struct {
	BatchSize int // rows per batch pulled from the dataset stream
	Workers   int // concurrent column converters per batch
}

// Runtime drives all scans. It is an explicitly threaded dependency, not a
// process-wide singleton: construct one, hand it to the bridge, and it safely
// accepts concurrent calls. Handles are never shared between calls.
type Runtime struct {
	batchSize int
	workers   int
}

// New validates the options and builds a runtime.
func New(opts Opts) (*Runtime, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Workers == 0 {
		opts.Workers = defaultWorkers
	}
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrRuntimeInit, opts.BatchSize)
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("%w: workers %d", ErrRuntimeInit, opts.Workers)
	}
	return &Runtime{batchSize: opts.BatchSize, workers: opts.Workers}, nil
}

// Handle is one opened dataset with its derived column descriptors. It is
// exclusively owned by the call that opened it, never cached, and closed at
// call end.
type Handle struct {
	rt   *Runtime
	ds   *dataset.Dataset
	cols []schema.Column
	id   string // short call id for log correlation
}

// Open resolves the dataset at path fully, schema included, before
// returning. Failures are classified into the caller-visible error kinds.
func (rt *Runtime) Open(path string) (*Handle, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: no runtime", ErrRuntimeInit)
	}
	ds, err := dataset.Open(path)
	if err != nil {
		return nil, classifyOpen(path, err)
	}
	h := &Handle{rt: rt, ds: ds, cols: schema.Describe(ds.Schema()), id: uuid.New().String()[:8]}
	log.Printf("[DEBUG] {%s} opened dataset %s, version %d, %d columns",
		h.id, path, ds.Version(), len(h.cols))
	return h, nil
}

// Columns returns the ordered column descriptors, as declared by the source.
func (h *Handle) Columns() []schema.Column { return h.cols }

// Close releases the handle. Handles never outlive their call.
func (h *Handle) Close() {
	log.Printf("[DEBUG] {%s} closed", h.id)
}

// Stats is a metadata snapshot tied to the version read at open time.
type Stats struct {
	Version    uint64
	NumRows    int64
	NumColumns int
}

// Stats derives the snapshot from manifest metadata only, no data scan.
func (h *Handle) Stats() Stats {
	return Stats{Version: h.ds.Version(), NumRows: h.ds.CountRows(), NumColumns: len(h.cols)}
}

// Scan pulls the dataset's batch stream one batch at a time and flattens it
// into converted rows. A nil limit exhausts the stream; limit 0 returns
// before any batch is requested; once the limit is satisfied no further
// batches are pulled. The scan runs to completion (or early stop) before
// returning and is not restartable.
func (h *Handle) Scan(ctx context.Context, limit *int64) ([]value.Object, error) {
	if limit != nil && *limit < 0 {
		return nil, fmt.Errorf("negative scan limit %d", *limit)
	}
	if limit != nil && *limit == 0 {
		return []value.Object{}, nil
	}

	st := h.ds.NewStream(ctx, h.rt.batchSize)
	defer st.Close()

	rows := []value.Object{}
	for {
		rec, err := st.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("{%s} scan failed: %w", h.id, err)
		}

		batch, err := h.convertBatch(ctx, rec)
		rec.Release()
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)

		if limit != nil && int64(len(rows)) >= *limit {
			rows = rows[:*limit]
			break // Close cancels the producer, remaining batches are never read
		}
	}
	log.Printf("[DEBUG] {%s} scan produced %d rows", h.id, len(rows))
	return rows, nil
}

// convertBatch flattens one record batch, one goroutine per column. Rows are
// preallocated and each column writes its own slot, so order is preserved
// without contention.
func (h *Handle) convertBatch(ctx context.Context, rec arrow.RecordBatch) ([]value.Object, error) {
	n := int(rec.NumRows())
	rows := make([]value.Object, n)
	for r := range rows {
		rows[r] = make(value.Object, len(h.cols))
	}

	wg := syncs.NewErrSizedGroup(h.rt.workers, syncs.Context(ctx), syncs.Preemptive)
	for c := range h.cols {
		c := c
		wg.Go(func() error {
			col := h.cols[c]
			arr := rec.Column(c)
			for r := 0; r < n; r++ {
				v, err := value.Convert(col, arr, r)
				if err != nil {
					return fmt.Errorf("{%s} scan aborted: %w", h.id, err)
				}
				rows[r][c] = value.Pair{Name: col.Name, Val: v}
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
