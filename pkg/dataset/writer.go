package dataset

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/go-pkgz/fileutils"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// Write creates a new dataset at path, committing the given records as
// version 1. A fragment is written even for an empty record set so the
// schema always has a place to live. Refuses to overwrite an existing
// dataset; the public read surface stays read-only, this is for fixtures
// and imports.
func Write(path string, sc *arrow.Schema, recs []arrow.RecordBatch) error {
	if _, err := os.Stat(filepath.Join(path, versionsDir)); err == nil {
		return fmt.Errorf("dataset already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Join(path, versionsDir), 0o750); err != nil {
		return fmt.Errorf("can't make dataset directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(path, dataDir), 0o750); err != nil {
		return fmt.Errorf("can't make data directory: %w", err)
	}

	frag, err := writeFragment(path, sc, recs)
	if err != nil {
		return err
	}
	return writeManifest(path, Manifest{Version: 1, CreatedAt: time.Now(), Fragments: []Fragment{frag}})
}

// Append commits the records as a new fragment under the next version. The
// previous version's manifest stays untouched.
func Append(path string, recs []arrow.RecordBatch) error {
	d, err := Open(path)
	if err != nil {
		return fmt.Errorf("can't open dataset for append: %w", err)
	}
	for _, rec := range recs {
		if !rec.Schema().Equal(d.schema) {
			return fmt.Errorf("record schema differs from dataset schema")
		}
	}

	frag, err := writeFragment(path, d.schema, recs)
	if err != nil {
		return err
	}
	m := d.manifest
	m.Version++
	m.CreatedAt = time.Now()
	m.Fragments = append(m.Fragments, frag)
	return writeManifest(path, m)
}

// Copy clones a dataset directory file by file. The copy opens to the same
// version and scans to the same rows.
func Copy(src, dst string) error {
	d, err := Open(src)
	if err != nil {
		return fmt.Errorf("can't open dataset for copy: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dst, versionsDir), 0o750); err != nil {
		return fmt.Errorf("can't make copy directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dst, dataDir), 0o750); err != nil {
		return fmt.Errorf("can't make copy directory: %w", err)
	}

	for _, sub := range []string{versionsDir, dataDir} {
		entries, err := os.ReadDir(filepath.Join(src, sub))
		if err != nil {
			return fmt.Errorf("can't list %s: %w", sub, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if err := fileutils.CopyFile(filepath.Join(src, sub, e.Name()),
				filepath.Join(dst, sub, e.Name())); err != nil {
				return fmt.Errorf("can't copy %s/%s: %w", sub, e.Name(), err)
			}
		}
	}
	log.Printf("[INFO] copied dataset %s to %s, version %d", src, dst, d.Version())
	return nil
}

func writeFragment(path string, sc *arrow.Schema, recs []arrow.RecordBatch) (Fragment, error) {
	name := uuid.New().String() + fragmentExt
	f, err := os.Create(filepath.Join(path, dataDir, name))
	if err != nil {
		return Fragment{}, fmt.Errorf("can't create fragment: %w", err)
	}
	defer f.Close() // nolint

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(sc))
	if err != nil {
		return Fragment{}, fmt.Errorf("can't create fragment writer: %w", err)
	}

	var rows int64
	for _, rec := range recs {
		if err := w.Write(rec); err != nil {
			return Fragment{}, fmt.Errorf("can't write fragment record: %w", err)
		}
		rows += rec.NumRows()
	}
	if err := w.Close(); err != nil {
		return Fragment{}, fmt.Errorf("can't finalize fragment: %w", err)
	}
	return Fragment{File: name, Rows: rows}, nil
}

func writeManifest(path string, m Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("can't encode manifest: %w", err)
	}
	fname := filepath.Join(path, versionsDir, fmt.Sprintf("%d%s", m.Version, manifestExt))
	if err := os.WriteFile(fname, data, 0o640); err != nil {
		return fmt.Errorf("can't write manifest: %w", err)
	}
	return nil
}
