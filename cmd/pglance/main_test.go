package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pglance/pglance/pkg/bridge"
	"github.com/pglance/pglance/pkg/catalog"
	"github.com/pglance/pglance/pkg/dataset"
	"github.com/pglance/pglance/pkg/scanner"
)

func makeTestDataset(t *testing.T) string {
	t.Helper()
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	bld := array.NewRecordBuilder(memory.NewGoAllocator(), sc)
	defer bld.Release()
	bld.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	bld.Field(1).(*array.StringBuilder).AppendValues([]string{"a", "b", "c"}, nil)
	rec := bld.NewRecordBatch()
	defer rec.Release()

	path := filepath.Join(t.TempDir(), "tbl")
	require.NoError(t, dataset.Write(path, sc, []arrow.RecordBatch{rec}))
	return path
}

func makeTestBridge(t *testing.T) *bridge.Bridge {
	t.Helper()
	rt, err := scanner.New(scanner.Opts{})
	require.NoError(t, err)
	return bridge.New(rt)
}

func Test_run(t *testing.T) {
	path := makeTestDataset(t)

	t.Run("default operation is info", func(t *testing.T) {
		opts := options{NoColor: true}
		opts.Positional.Datasets = []string{path}
		require.NoError(t, run(opts))
	})

	t.Run("scan with limit", func(t *testing.T) {
		opts := options{Scan: true, Limit: 2, NoColor: true}
		opts.Positional.Datasets = []string{path}
		require.NoError(t, run(opts))
	})

	t.Run("no dataset given", func(t *testing.T) {
		err := run(options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no dataset given")
	})

	t.Run("hello alone needs no dataset", func(t *testing.T) {
		require.NoError(t, run(options{Hello: true}))
	})

	t.Run("missing dataset fails", func(t *testing.T) {
		opts := options{Stats: true, NoColor: true}
		opts.Positional.Datasets = []string{filepath.Join(t.TempDir(), "nope")}
		err := run(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "can't get table stats")
	})

	t.Run("clone", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "clone")
		opts := options{CloneTo: dst, NoColor: true}
		opts.Positional.Datasets = []string{path}
		require.NoError(t, run(opts))

		d, err := dataset.Open(dst)
		require.NoError(t, err)
		assert.Equal(t, int64(3), d.CountRows())
	})

	t.Run("register and resolve through the catalog", func(t *testing.T) {
		conn := filepath.Join(t.TempDir(), "cat.sqlite")

		opts := options{Register: "demo", Catalog: conn, NoColor: true}
		opts.Positional.Datasets = []string{path}
		require.NoError(t, run(opts))

		opts = options{Stats: true, Catalog: conn, NoColor: true}
		opts.Positional.Datasets = []string{"@demo"}
		require.NoError(t, run(opts))
	})

	t.Run("catalog name without catalog", func(t *testing.T) {
		opts := options{}
		opts.Positional.Datasets = []string{"@demo"}
		err := run(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a catalog")
	})
}

func Test_processDataset(t *testing.T) {
	b := makeTestBridge(t)
	path := makeTestDataset(t)

	capture := func(t *testing.T, opts options) string {
		buf := &bytes.Buffer{}
		out := newDSWriter(buf, path, true)
		require.NoError(t, processDataset(context.Background(), b, opts, path, out))
		return buf.String()
	}

	t.Run("info", func(t *testing.T) {
		got := capture(t, options{Info: true})
		assert.Contains(t, got, "id")
		assert.Contains(t, got, "int8")
		assert.Contains(t, got, "not null")
		assert.Contains(t, got, "text")
		assert.Contains(t, got, "nullable")
	})

	t.Run("info as json", func(t *testing.T) {
		got := capture(t, options{Info: true, JSON: true})
		assert.Contains(t, got, `"column_name":"id"`)
		assert.Contains(t, got, `"data_type":"int8"`)
	})

	t.Run("stats", func(t *testing.T) {
		got := capture(t, options{Stats: true})
		assert.Contains(t, got, "version: 1, rows: 3, columns: 2")
	})

	t.Run("scan prints one json object per row", func(t *testing.T) {
		got := capture(t, options{Scan: true, Limit: -1})
		lines := strings.Split(strings.TrimSpace(got), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], `{"id":1,"name":"a"}`)
		assert.Contains(t, lines[2], `{"id":3,"name":"c"}`)
	})

	t.Run("scan respects the limit", func(t *testing.T) {
		got := capture(t, options{Scan: true, Limit: 1})
		lines := strings.Split(strings.TrimSpace(got), "\n")
		assert.Len(t, lines, 1)
	})
}

func Test_makeSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := makeSettings(options{})
		require.NoError(t, err)
		assert.Equal(t, 1024, s.BatchSize)
		assert.Equal(t, 4, s.Workers)
		assert.Equal(t, 1, s.Concurrent)
	})

	t.Run("flags override file", func(t *testing.T) {
		fname := filepath.Join(t.TempDir(), "settings.yml")
		require.NoError(t, os.WriteFile(fname, []byte("batch_size: 100\nworkers: 2\n"), 0o600))

		s, err := makeSettings(options{Config: fname, BatchSize: 200})
		require.NoError(t, err)
		assert.Equal(t, 200, s.BatchSize, "flag wins")
		assert.Equal(t, 2, s.Workers, "file value kept without a flag")
	})

	t.Run("bad settings file", func(t *testing.T) {
		_, err := makeSettings(options{Config: filepath.Join(t.TempDir(), "nope.yml")})
		require.Error(t, err)
	})
}

func Test_resolvePaths(t *testing.T) {
	conn := filepath.Join(t.TempDir(), "cat.sqlite")
	store, err := catalog.NewStore(conn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Register("sales", "/data/sales"))

	t.Run("plain paths pass through", func(t *testing.T) {
		res, err := resolvePaths(store, []string{"/a", "/b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/b"}, res)
	})

	t.Run("names resolved", func(t *testing.T) {
		res, err := resolvePaths(store, []string{"@sales", "/b"})
		require.NoError(t, err)
		assert.Equal(t, []string{"/data/sales", "/b"}, res)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := resolvePaths(store, []string{"@nope"})
		require.Error(t, err)
		assert.ErrorIs(t, err, catalog.ErrUnknownName)
	})

	t.Run("name without a store", func(t *testing.T) {
		_, err := resolvePaths(nil, []string{"@sales"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "needs a catalog")
	})
}

func Test_dsWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newDSWriter(buf, "tbl", true)

	w.Printf("hello %d", 42)
	assert.Equal(t, "[tbl] hello 42\n", buf.String())

	buf.Reset()
	require.NoError(t, w.PrintJSON(map[string]int{"x": 1}))
	assert.Equal(t, "[tbl] {\"x\":1}\n", buf.String())
}

func Test_setupLog(t *testing.T) {
	setupLog(false)
	setupLog(true)
}
