package scanner

import (
	"errors"
	"fmt"
	"io/fs"
)

// error kinds crossing the call boundary. Every failure of an entry point
// wraps exactly one of these (or value.ConvertError during a scan) and is
// checked with errors.Is by the host side.
var (
	ErrNotFound      = errors.New("dataset not found")
	ErrPermission    = errors.New("dataset not accessible")
	ErrInvalidFormat = errors.New("dataset malformed")
	ErrRuntimeInit   = errors.New("scan runtime init failed")
)

// classifyOpen maps an open failure to its caller-visible kind. Filesystem
// errors keep their class; anything else a dataset open can produce means the
// directory is not a readable dataset.
func classifyOpen(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %w", ErrPermission, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrInvalidFormat, path, err)
	}
}
