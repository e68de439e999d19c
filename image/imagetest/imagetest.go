// Package imagetest provides a stub image.ImageSource for exercising
// error paths in tests: a short read, a forced I/O error at a given
// offset, or a size smaller than what the caller expects to read.
package imagetest

import "fmt"

// Source is a fixed byte buffer that can be told to fail reads
// touching a given offset range, for testing that I/O errors from the
// underlying source propagate verbatim.
type Source struct {
	Data []byte
	// FailFrom/FailTo mark a byte range (inclusive of FailFrom,
	// exclusive of FailTo) within which any touching read returns
	// Err. Leave both zero to never fail.
	FailFrom, FailTo int64
	Err              error
}

// ReadAt implements image.ImageSource.
func (s *Source) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(s.Data)) || len(buf) == 0 {
		return 0, nil
	}
	if s.Err != nil && s.FailTo > s.FailFrom && offset < s.FailTo && offset+int64(len(buf)) > s.FailFrom {
		return 0, s.Err
	}
	n := copy(buf, s.Data[offset:])
	return n, nil
}

// Len implements image.ImageSource.
func (s *Source) Len() int64 {
	return int64(len(s.Data))
}

// ErrInjected is a sentinel error for tests that inject I/O failures.
var ErrInjected = fmt.Errorf("imagetest: injected I/O error")
