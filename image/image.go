// Package image provides the positional-read source stack underlying a
// PFS image: a leaf byte-slice source, an XTS-AES-128 decrypting source,
// and a sparse copy-on-write overlay, all implementing the same
// ImageSource contract so they can be layered freely.
package image

import (
	"errors"
	"io"
)

// ImageSource is a stateless, thread-safe positional byte source.
//
// Implementations must be safe for concurrent use: two goroutines calling
// ReadAt with disjoint or overlapping ranges must both succeed without
// external synchronization, and each call must observe a consistent
// snapshot of the underlying data.
type ImageSource interface {
	// ReadAt copies up to len(buf) bytes starting at offset into buf and
	// returns the number of bytes written. A return of 0 with a nil error
	// means offset is at or past the end of the source. ReadAt never
	// returns an error for an out-of-range offset or an empty buf; it
	// simply returns 0.
	ReadAt(offset int64, buf []byte) (int, error)

	// Len returns the total size of the source in bytes.
	Len() int64
}

// ReadFullAt reads exactly len(buf) bytes from src at offset, looping over
// ReadAt as needed. It returns io.ErrUnexpectedEOF if src runs out of
// bytes before buf is filled.
func ReadFullAt(src ImageSource, offset int64, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := src.ReadAt(offset+int64(total), buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}
		total += n
	}
	return nil
}

// ErrNegativeOffset is returned by layers that choose to reject a
// negative offset explicitly rather than silently treating it as EOF.
var ErrNegativeOffset = errors.New("image: negative offset")

// PlaintextSlice is an ImageSource backed directly by an in-memory byte
// slice, with no transformation applied. It performs a bounded copy and
// holds no mutable state, so concurrent reads need no locking.
type PlaintextSlice struct {
	data []byte
}

// NewPlaintextSlice wraps data as an ImageSource. The slice is not
// copied; the caller must not mutate it for the lifetime of the returned
// source.
func NewPlaintextSlice(data []byte) *PlaintextSlice {
	return &PlaintextSlice{data: data}
}

// Bytes returns the slice backing this source, for zero-copy callers
// (e.g. pfs.FileEntry.AsSlice).
func (p *PlaintextSlice) Bytes() []byte {
	return p.data
}

// ReadAt implements ImageSource.
func (p *PlaintextSlice) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(p.data)) || len(buf) == 0 {
		return 0, nil
	}
	n := copy(buf, p.data[offset:])
	return n, nil
}

// Len implements ImageSource.
func (p *PlaintextSlice) Len() int64 {
	return int64(len(p.data))
}

var _ ImageSource = (*PlaintextSlice)(nil)
