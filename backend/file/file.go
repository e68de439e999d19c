// Package file opens a PFS image, or a PKG container holding one, from
// a path on disk.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/orbispkg/go-pfs/backend"
)

type rawBackend struct {
	storage *os.File
}

// New wraps an already-open *os.File as a backend.Storage.
func New(f *os.File) backend.Storage {
	return rawBackend{storage: f}
}

// OpenFromPath opens pathName read-only. Use this to open a bare PFS
// image file; for a PKG container, wrap the result with backend.Sub to
// carve out the PFS region before handing it to image.NewFileSource.
func OpenFromPath(pathName string) (backend.Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass a file name")
	}
	if _, err := os.Stat(pathName); os.IsNotExist(err) {
		return nil, fmt.Errorf("file %s does not exist", pathName)
	}

	f, err := os.OpenFile(pathName, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", pathName, err)
	}

	return rawBackend{storage: f}, nil
}

var _ backend.Storage = rawBackend{}

func (f rawBackend) Sys() (*os.File, error) {
	return f.storage, nil
}

func (f rawBackend) Stat() (fs.FileInfo, error) {
	return f.storage.Stat()
}

func (f rawBackend) Read(b []byte) (int, error) {
	return f.storage.Read(b)
}

func (f rawBackend) Close() error {
	return f.storage.Close()
}

func (f rawBackend) ReadAt(p []byte, off int64) (n int, err error) {
	return f.storage.ReadAt(p, off)
}

func (f rawBackend) Seek(offset int64, whence int) (int64, error) {
	return f.storage.Seek(offset, whence)
}
