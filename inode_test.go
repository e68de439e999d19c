package pfs

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestBuildBlockMapContiguous(t *testing.T) {
	in := &Inode{BlockCount: 4}
	in.Direct[0] = 100
	in.Direct[1] = contiguousMarker

	blocks, err := buildBlockMap(in, nil)
	if err != nil {
		t.Fatalf("buildBlockMap: %v", err)
	}
	want := []uint32{100, 101, 102, 103}
	if !equalUint32(blocks, want) {
		t.Fatalf("blocks = %v, want %v", blocks, want)
	}
	if !isContiguous(in) {
		t.Fatalf("isContiguous() = false, want true")
	}
}

func TestBuildBlockMapFragmentedSingleIndirect(t *testing.T) {
	in := &Inode{BlockCount: 20}
	for i := 0; i < directPointerCount; i++ {
		in.Direct[i] = uint32(i + 1) // 1..12, none of which is the contiguous marker at index 1
	}
	in.Indirect[0] = 200

	// Single-indirect block 200 holds 8 unsigned pointer entries.
	indirectBlock := make([]byte, 8*4)
	leafPointers := []uint32{50, 51, 52, 53, 54, 55, 56, 57}
	for i, p := range leafPointers {
		binary.LittleEndian.PutUint32(indirectBlock[i*4:i*4+4], p)
	}

	readBlock := func(blockNumber uint32) ([]byte, error) {
		if blockNumber != 200 {
			t.Fatalf("unexpected block read: %d", blockNumber)
		}
		return indirectBlock, nil
	}

	blocks, err := buildBlockMap(in, readBlock)
	if err != nil {
		t.Fatalf("buildBlockMap: %v", err)
	}
	if len(blocks) != 20 {
		t.Fatalf("len(blocks) = %d, want 20", len(blocks))
	}
	want := append(append([]uint32{}, in.Direct[:]...), leafPointers...)
	if !equalUint32(blocks, want) {
		t.Fatalf("blocks = %v, want %v", blocks, want)
	}
}

func TestBuildBlockMapEmpty(t *testing.T) {
	in := &Inode{BlockCount: 0}
	blocks, err := buildBlockMap(in, nil)
	if err != nil {
		t.Fatalf("buildBlockMap: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("blocks = %v, want empty", blocks)
	}
}

func TestBuildBlockMapDoubleIndirectUnsupported(t *testing.T) {
	in := &Inode{BlockCount: 1000}
	for i := 0; i < directPointerCount; i++ {
		in.Direct[i] = uint32(i + 1)
	}
	in.Indirect[0] = 200
	in.Indirect[1] = 300

	// A single-indirect block and a double-indirect first-level block,
	// both far too small to ever reach 1000 entries, so resolution
	// falls through to the double-indirect branch and then fails.
	small := make([]byte, 4*4)
	readBlock := func(blockNumber uint32) ([]byte, error) {
		return small, nil
	}

	_, err := buildBlockMap(in, readBlock)
	var notSupported *DoubleIndirectNotSupportedError
	if !errors.As(err, &notSupported) {
		t.Fatalf("buildBlockMap error = %v, want *DoubleIndirectNotSupportedError", err)
	}
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
