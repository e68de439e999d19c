package pfs

import (
	"fmt"

	"github.com/orbispkg/go-pfs/backend"
	backendfile "github.com/orbispkg/go-pfs/backend/file"
	"github.com/orbispkg/go-pfs/image"
)

// OpenFile opens an unencrypted PFS image stored as its own file on
// disk, reading blocks on demand rather than loading the whole image
// into memory. Zero-copy FileEntry.AsSlice access is unavailable
// through this entry point, since the backing bytes are not a
// borrowed slice.
func OpenFile(pathName string) (*Pfs, error) {
	storage, err := backendfile.OpenFromPath(pathName)
	if err != nil {
		return nil, fmt.Errorf("pfs: open %s: %w", pathName, err)
	}
	info, err := storage.Stat()
	if err != nil {
		return nil, fmt.Errorf("pfs: stat %s: %w", pathName, err)
	}
	return OpenImage(image.NewFileSource(storage, info.Size()))
}

// OpenPkgRegion opens an unencrypted PFS image embedded as a byte
// range inside a larger PKG container file, without reading the
// container's other entries into memory.
func OpenPkgRegion(pathName string, offset, size int64) (*Pfs, error) {
	storage, err := backendfile.OpenFromPath(pathName)
	if err != nil {
		return nil, fmt.Errorf("pfs: open %s: %w", pathName, err)
	}
	region := backend.Sub(storage, offset, size)
	return OpenImage(image.NewFileSource(region, size))
}
