package image

import (
	"bytes"
	"testing"
)

func TestCowOverlayBridgingScenario(t *testing.T) {
	// Scenario 4: base is 100 zero bytes. Writes (10,[0xAA;5]),
	// (25,[0xCC;5]), then (13,[0xBB;15]) should merge into one segment
	// and read(8,25) should yield 00 00 AA AA AA BB*15 CC CC 00 00 00.
	base := NewPlaintextSlice(make([]byte, 100))
	overlay := NewCowOverlay(base)

	if err := overlay.WriteAt(10, bytes.Repeat([]byte{0xAA}, 5)); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := overlay.WriteAt(25, bytes.Repeat([]byte{0xCC}, 5)); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if err := overlay.WriteAt(13, bytes.Repeat([]byte{0xBB}, 15)); err != nil {
		t.Fatalf("write 3: %v", err)
	}

	if got := len(overlay.segments); got != 1 {
		t.Fatalf("segment count = %d, want 1", got)
	}

	buf := make([]byte, 25)
	n, err := overlay.ReadAt(8, buf)
	if err != nil || n != 25 {
		t.Fatalf("ReadAt(8,25) = %d, %v", n, err)
	}

	want := append([]byte{0x00, 0x00}, bytes.Repeat([]byte{0xAA}, 3)...)
	want = append(want, bytes.Repeat([]byte{0xBB}, 15)...)
	want = append(want, 0xCC, 0xCC, 0x00, 0x00, 0x00)

	if !bytes.Equal(buf, want) {
		t.Fatalf("ReadAt(8,25) = % x, want % x", buf, want)
	}
}

func TestCowOverlaySegmentsNeverOverlapOrTouch(t *testing.T) {
	base := NewPlaintextSlice(make([]byte, 50))
	overlay := NewCowOverlay(base)

	if err := overlay.WriteAt(0, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := overlay.WriteAt(3, []byte{4, 5, 6}); err != nil { // touches the end of segment 1
		t.Fatal(err)
	}
	if err := overlay.WriteAt(20, []byte{9, 9}); err != nil { // disjoint
		t.Fatal(err)
	}

	if len(overlay.segments) != 2 {
		t.Fatalf("segment count = %d, want 2 (adjacent writes merged, disjoint one separate)", len(overlay.segments))
	}
	for i := 1; i < len(overlay.segments); i++ {
		prev, cur := overlay.segments[i-1], overlay.segments[i]
		if prev.end() >= cur.start {
			t.Fatalf("segments %d and %d overlap or touch: %+v %+v", i-1, i, prev, cur)
		}
	}
}

func TestCowOverlayExtendsLength(t *testing.T) {
	base := NewPlaintextSlice(make([]byte, 10))
	overlay := NewCowOverlay(base)

	if err := overlay.WriteAt(8, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if got, want := overlay.Len(), int64(12); got != want {
		t.Fatalf("Len() = %d, want %d", got, want)
	}
}
