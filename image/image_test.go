package image

import (
	"errors"
	"io"
	"testing"
)

func TestPlaintextSliceReadAt(t *testing.T) {
	data := []byte("hello, pfs")
	p := NewPlaintextSlice(data)

	if got := p.Len(); got != int64(len(data)) {
		t.Fatalf("Len() = %d, want %d", got, len(data))
	}

	buf := make([]byte, 5)
	n, err := p.ReadAt(0, buf)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("ReadAt(0,5) = %q, %d", buf, n)
	}

	n, err = p.ReadAt(7, buf)
	if err != nil || n != 3 || string(buf[:n]) != "pfs" {
		t.Fatalf("ReadAt(7,5) = %q, %d, %v", buf[:n], n, err)
	}

	n, err = p.ReadAt(int64(len(data)), buf)
	if err != nil || n != 0 {
		t.Fatalf("ReadAt at EOF = %d, %v, want 0, nil", n, err)
	}

	n, err = p.ReadAt(-1, buf)
	if err != nil || n != 0 {
		t.Fatalf("ReadAt negative offset = %d, %v, want 0, nil", n, err)
	}
}

type shortSource struct {
	data []byte
}

func (s shortSource) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 || offset >= int64(len(s.data)) || len(buf) == 0 {
		return 0, nil
	}
	// Only ever return one byte at a time, to exercise ReadFullAt's loop.
	buf[0] = s.data[offset]
	return 1, nil
}

func (s shortSource) Len() int64 { return int64(len(s.data)) }

func TestReadFullAtLoopsShortReads(t *testing.T) {
	src := shortSource{data: []byte("abcdef")}
	buf := make([]byte, 4)
	if err := ReadFullAt(src, 1, buf); err != nil {
		t.Fatalf("ReadFullAt: %v", err)
	}
	if string(buf) != "bcde" {
		t.Fatalf("ReadFullAt = %q, want %q", buf, "bcde")
	}
}

func TestReadFullAtUnexpectedEOF(t *testing.T) {
	src := NewPlaintextSlice([]byte("abc"))
	buf := make([]byte, 10)
	err := ReadFullAt(src, 0, buf)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadFullAt short source: err = %v, want io.ErrUnexpectedEOF", err)
	}
}
