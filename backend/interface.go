// Package backend abstracts how PFS image bytes are acquired — a whole
// file on disk, or a byte range carved out of a larger PKG container —
// behind a single read-only Storage interface. The PFS reader itself
// never writes back to its source, so Storage carries no write surface.
package backend

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

var ErrNotSuitable = errors.New("backing file is not suitable")

// File is the minimum a PFS opener needs from a backing file or
// container region: positional reads, a seek cursor for callers that
// prefer streaming access, and a size.
type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Storage is a File plus access to the underlying OS file, for callers
// that need to mmap or fstat it directly.
type Storage interface {
	File
	// Sys returns the underlying *os.File, if there is one.
	Sys() (*os.File, error)
}
