package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	bundled "bikestreets/assets"
)

// Locations inside the embedded bundle.
const (
	LayerFolder  = bundled.LayerFolder
	ManifestPath = bundled.ManifestPath
)

// ErrBundleMissing is returned when the requested asset folder does not exist.
var ErrBundleMissing = errors.New("asset bundle missing")

// Store is a read-only asset bundle.
type Store interface {
	// List returns the file names directly inside folder, sorted.
	List(folder string) ([]string, error)
	// Open opens a named entry for reading.
	Open(name string) (io.ReadCloser, error)
}

// FSStore serves assets from an fs.FS.
type FSStore struct {
	fsys fs.FS
}

// NewFSStore wraps fsys as a Store
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

// Embedded returns the store compiled into the binary.
func Embedded() *FSStore {
	return NewFSStore(bundled.Bundle)
}

// Open returns the embedded bundle when dir is empty, otherwise a store
// rooted at dir on disk.
func Open(dir string) (*FSStore, error) {
	if dir == "" {
		return Embedded(), nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBundleMissing, dir)
		}
		return nil, fmt.Errorf("failed to stat asset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrBundleMissing, dir)
	}
	return NewFSStore(os.DirFS(dir)), nil
}

func (s *FSStore) List(folder string) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, path.Clean(folder))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBundleMissing, folder)
		}
		return nil, fmt.Errorf("failed to list %s: %w", folder, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *FSStore) Open(name string) (io.ReadCloser, error) {
	f, err := s.fsys.Open(path.Clean(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", name, err)
	}
	return f, nil
}
