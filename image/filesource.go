package image

import (
	"fmt"
	"io"
)

// FileSource is an ImageSource backed by an io.ReaderAt (typically a
// backend.Storage opened from disk), used when the image is too large
// or inconvenient to hold entirely in memory.
type FileSource struct {
	r    io.ReaderAt
	size int64
}

// NewFileSource wraps r as an ImageSource of the given size.
func NewFileSource(r io.ReaderAt, size int64) *FileSource {
	return &FileSource{r: r, size: size}
}

// ReadAt implements ImageSource.
func (f *FileSource) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= f.size || len(buf) == 0 {
		return 0, nil
	}
	want := buf
	if offset+int64(len(buf)) > f.size {
		want = buf[:f.size-offset]
	}
	n, err := f.r.ReadAt(want, offset)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("image: file source read at %d: %w", offset, err)
	}
	return n, nil
}

// Len implements ImageSource.
func (f *FileSource) Len() int64 {
	return f.size
}

var _ ImageSource = (*FileSource)(nil)
