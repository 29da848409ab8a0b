package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// Backend is the storage a Store persists entries into.
// Entries are addressed by a location obtained from Locate; names are the
// deterministic entry names produced by the Store.
type Backend interface {
	// Root describes the storage root for diagnostics.
	Root() string

	// Locate returns the location of the named entry. It performs no I/O.
	Locate(name string) string

	// Names lists existing entry names.
	// Returns an empty slice (not error) if the storage does not exist yet.
	Names() ([]string, error)

	// Exists reports whether an entry exists at loc.
	Exists(loc string) (bool, error)

	// Ensure prepares the storage for writes and reports whether it had to
	// be created. Must be idempotent.
	Ensure() (created bool, err error)

	// Read returns the entry at loc.
	// Returns ErrNotFound if it doesn't exist.
	Read(loc string) ([]byte, error)

	// Write replaces the entry at loc in a single atomic step: readers see
	// either the previous content or the new content, never a partial write.
	Write(loc string, data []byte) error
}

// FileBackend stores entries as files in one directory.
// The directory is created lazily by Ensure; a missing directory holds no entries.
type FileBackend struct {
	dir      string
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

// Compile-time interface check.
var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a backend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{
		dir:      dir,
		dirPerm:  0o755,
		filePerm: 0o644,
	}
}

// Root implements Backend.
func (f *FileBackend) Root() string {
	return f.dir
}

// Locate implements Backend.
func (f *FileBackend) Locate(name string) string {
	return filepath.Join(f.dir, name)
}

// Names implements Backend.
func (f *FileBackend) Names() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Exists implements Backend.
func (f *FileBackend) Exists(loc string) (bool, error) {
	info, err := os.Stat(loc)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Ensure implements Backend.
func (f *FileBackend) Ensure() (bool, error) {
	info, err := os.Stat(f.dir)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("%s is not a directory", f.dir)
		}
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(f.dir, f.dirPerm); err != nil {
		return false, err
	}
	return true, nil
}

// Read implements Backend.
func (f *FileBackend) Read(loc string) ([]byte, error) {
	data, err := os.ReadFile(loc)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, tkerrors.ErrNotFound
	}
	return data, err
}

// Write implements Backend.
// The data goes to a temporary file in the same directory which is then
// renamed over loc.
func (f *FileBackend) Write(loc string, data []byte) error {
	return renameio.WriteFile(loc, data, f.filePerm)
}
