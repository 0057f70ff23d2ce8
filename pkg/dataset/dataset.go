// Package dataset implements the versioned columnar store the bridge reads:
// a directory of arrow IPC fragment files under data/, described by TOML
// manifests under _versions/. The manifest with the highest number is the
// current version of the table. The reader side is metadata-cheap: schema,
// version and row counts come from manifests and fragment footers, the data
// itself is only touched by Stream.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/pelletier/go-toml/v2"
)

const (
	versionsDir = "_versions"
	dataDir     = "data"
	manifestExt = ".manifest"
	fragmentExt = ".arrow"
)

// ErrMalformed marks a directory that exists but does not hold a readable
// dataset. The caller maps it to its invalid-format error class.
var ErrMalformed = errors.New("malformed dataset")

// Manifest describes one committed version of a dataset.
type Manifest struct {
	Version   uint64     `toml:"version"`
	CreatedAt time.Time  `toml:"created_at"`
	Fragments []Fragment `toml:"fragments"`
}

// Fragment is one arrow IPC file of the version, with its row count recorded
// so stats never need a data scan.
type Fragment struct {
	File string `toml:"file"`
	Rows int64  `toml:"rows"`
}

func (m Manifest) totalRows() int64 {
	var n int64
	for _, f := range m.Fragments {
		n += f.Rows
	}
	return n
}

// Dataset is an opened, fully resolved view of one dataset version. It is
// read-only and owned by a single call.
type Dataset struct {
	path     string
	manifest Manifest
	schema   *arrow.Schema
}

// Open reads the latest manifest and the fragment schema of the dataset at
// path. It resolves completely before returning: missing path or permission
// problems surface as the underlying fs errors, anything structurally wrong
// wraps ErrMalformed.
func Open(path string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("can't access dataset: %w", err)
	}

	manifest, err := latestManifest(path)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{path: path, manifest: manifest}
	for i, frag := range manifest.Fragments {
		sc, err := fragmentSchema(filepath.Join(path, dataDir, frag.File))
		if err != nil {
			return nil, err
		}
		if i == 0 {
			ds.schema = sc
			continue
		}
		if !ds.schema.Equal(sc) {
			return nil, fmt.Errorf("%w: fragment %s schema differs from %s",
				ErrMalformed, frag.File, manifest.Fragments[0].File)
		}
	}
	if ds.schema == nil {
		return nil, fmt.Errorf("%w: version %d has no fragments", ErrMalformed, manifest.Version)
	}
	return ds, nil
}

// Schema returns the arrow schema shared by all fragments of the version.
func (d *Dataset) Schema() *arrow.Schema { return d.schema }

// Version returns the manifest number the dataset was opened at.
func (d *Dataset) Version() uint64 { return d.manifest.Version }

// CountRows returns the total row count from manifest metadata only.
func (d *Dataset) CountRows() int64 { return d.manifest.totalRows() }

// Path returns the dataset root directory.
func (d *Dataset) Path() string { return d.path }

func latestManifest(path string) (Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(path, versionsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("%w: no %s directory in %s", ErrMalformed, versionsDir, path)
		}
		return Manifest{}, fmt.Errorf("can't list manifests: %w", err)
	}

	latest := uint64(0)
	name := ""
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestExt) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), manifestExt), 10, 64)
		if err != nil {
			continue // foreign files are ignored, not fatal
		}
		if n > latest {
			latest, name = n, e.Name()
		}
	}
	if name == "" {
		return Manifest{}, fmt.Errorf("%w: no manifest found in %s", ErrMalformed, path)
	}

	data, err := os.ReadFile(filepath.Join(path, versionsDir, name))
	if err != nil {
		return Manifest{}, fmt.Errorf("can't read manifest %s: %w", name, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: manifest %s: %v", ErrMalformed, name, err)
	}
	if m.Version != latest {
		return Manifest{}, fmt.Errorf("%w: manifest %s declares version %d", ErrMalformed, name, m.Version)
	}
	return m, nil
}

// fragmentSchema reads just the IPC footer of a fragment file.
func fragmentSchema(fname string) (*arrow.Schema, error) {
	f, err := os.Open(fname)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: missing fragment %s", ErrMalformed, filepath.Base(fname))
		}
		return nil, fmt.Errorf("can't open fragment: %w", err)
	}
	defer f.Close() // nolint

	rd, err := ipc.NewFileReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: fragment %s: %v", ErrMalformed, filepath.Base(fname), err)
	}
	defer rd.Close() // nolint
	return rd.Schema(), nil
}
