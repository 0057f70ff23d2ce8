package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
)

// Stream delivers the dataset's data as batches of at most batchSize rows,
// in fragment order and within-fragment order. The producer runs on a
// background goroutine feeding a bounded channel; closing the stream cancels
// it promptly, so a limit-satisfied consumer never drains remaining batches.
type Stream struct {
	ch     chan streamItem
	cancel context.CancelFunc
}

type streamItem struct {
	rec arrow.RecordBatch
	err error
}

// NewStream starts the background producer for one pass over the dataset.
// The stream is not restartable, reopen the dataset to rescan.
func (d *Dataset) NewStream(ctx context.Context, batchSize int) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{ch: make(chan streamItem, 1), cancel: cancel}
	go s.produce(ctx, d, batchSize)
	return s
}

// Next blocks for the next batch. It returns io.EOF when the dataset is
// exhausted. The caller owns the returned batch and must release it.
func (s *Stream) Next(ctx context.Context) (arrow.RecordBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return item.rec, item.err
	}
}

// Close cancels the producer and releases anything still buffered. Safe to
// call at any point, including mid-stream on early termination.
func (s *Stream) Close() {
	s.cancel()
	for item := range s.ch {
		if item.rec != nil {
			item.rec.Release()
		}
	}
}

func (s *Stream) produce(ctx context.Context, d *Dataset, batchSize int) {
	defer close(s.ch)

	fail := func(err error) {
		select {
		case s.ch <- streamItem{err: err}:
		case <-ctx.Done():
		}
	}

	for _, frag := range d.manifest.Fragments {
		rows, err := s.produceFragment(ctx, filepath.Join(d.path, dataDir, frag.File), batchSize)
		if err != nil {
			if ctx.Err() == nil {
				fail(err)
			}
			return
		}
		if rows != frag.Rows {
			fail(fmt.Errorf("%w: fragment %s has %d rows, manifest says %d",
				ErrMalformed, frag.File, rows, frag.Rows))
			return
		}
	}
}

// produceFragment reads one IPC file and re-slices its records to the batch
// size. Returns the number of rows actually read.
func (s *Stream) produceFragment(ctx context.Context, fname string, batchSize int) (int64, error) {
	f, err := os.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("can't open fragment: %w", err)
	}
	defer f.Close() // nolint

	rd, err := ipc.NewFileReader(f)
	if err != nil {
		return 0, fmt.Errorf("%w: fragment %s: %v", ErrMalformed, filepath.Base(fname), err)
	}
	defer rd.Close() // nolint

	var rows int64
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("%w: fragment %s: %v", ErrMalformed, filepath.Base(fname), err)
		}
		rows += rec.NumRows()

		// the reader reuses rec on the next Read call, hand out slices
		for off := int64(0); off < rec.NumRows(); off += int64(batchSize) {
			end := off + int64(batchSize)
			if end > rec.NumRows() {
				end = rec.NumRows()
			}
			sl := rec.NewSlice(off, end)
			select {
			case s.ch <- streamItem{rec: sl}:
			case <-ctx.Done():
				sl.Release()
				return rows, ctx.Err()
			}
		}
	}
}
