// ABOUTME: ObjectStore abstraction over the material bytes, with a disk backend.
// ABOUTME: Paths are validated against traversal before touching the filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no object exists at the requested path.
var ErrNotFound = errors.New("object not found")

// ObjectStore reads material bytes by storage path. Implementations own the
// physical bytes; the database owns only the metadata row.
type ObjectStore interface {
	Open(path string) (io.ReadCloser, error)
}

// DiskStore serves objects from a directory tree rooted at Dir.
type DiskStore struct {
	Dir string
}

// Open returns a reader for the object at path. Rejects any path that would
// escape the root directory.
func (d *DiskStore) Open(path string) (io.ReadCloser, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(clean, "..") {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(d.Dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object %q: %w", path, err)
	}
	return f, nil
}
