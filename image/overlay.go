package image

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// segment is a contiguous run of overlay bytes starting at a logical
// offset in a CowOverlay.
type segment struct {
	start uint64
	data  []byte
}

func (s segment) end() uint64 {
	return s.start + uint64(len(s.data))
}

// CowOverlay wraps an ImageSource with a sparse, in-memory copy-on-write
// patch buffer. Writes never touch the base source; they are recorded as
// non-overlapping, non-adjacent segments layered on top of it at read
// time.
//
// Multiple concurrent readers are allowed; a writer excludes all readers
// and other writers for the duration of the write.
type CowOverlay struct {
	mu       sync.RWMutex
	base     ImageSource
	segments []segment // sorted by start, invariant: non-overlapping and non-adjacent
	length   uint64
}

// NewCowOverlay wraps base with an initially-empty overlay. The overlay's
// logical length starts equal to base.Len().
func NewCowOverlay(base ImageSource) *CowOverlay {
	return &CowOverlay{
		base:   base,
		length: uint64(base.Len()),
	}
}

// ReadAt implements ImageSource.
func (o *CowOverlay) ReadAt(offset int64, buf []byte) (int, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if offset < 0 || len(buf) == 0 {
		return 0, nil
	}
	start := uint64(offset)
	if start >= o.length {
		return 0, nil
	}

	want := uint64(len(buf))
	if start+want > o.length {
		want = o.length - start
	}
	out := buf[:want]

	// Fill from the base image first, zero-filling past its end.
	baseLen := uint64(o.base.Len())
	for i := range out {
		out[i] = 0
	}
	if start < baseLen {
		baseWant := baseLen - start
		if baseWant > want {
			baseWant = want
		}
		n, err := o.base.ReadAt(int64(start), out[:baseWant])
		if err != nil {
			return 0, fmt.Errorf("image: overlay base read at %d: %w", start, err)
		}
		_ = n // a short read from the base just leaves the remainder zero, per contract
	}

	// Overlay segments intersecting [start, start+want).
	end := start + want
	for _, s := range o.segments {
		if s.end() <= start || s.start >= end {
			continue
		}
		overlapStart := max64(s.start, start)
		overlapEnd := min64(s.end(), end)
		srcOff := overlapStart - s.start
		dstOff := overlapStart - start
		copy(out[dstOff:dstOff+(overlapEnd-overlapStart)], s.data[srcOff:overlapEnd-s.start])
	}

	return int(want), nil
}

// Len implements ImageSource.
func (o *CowOverlay) Len() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return int64(o.length)
}

// Overlay implements OverlayCapable.
func (o *CowOverlay) Overlay() *CowOverlay {
	return o
}

// EncryptedStart implements Encrypted by forwarding to base when base
// carries an encryption boundary. CowOverlay itself never encrypts
// anything; it only reports a boundary that already exists below it.
func (o *CowOverlay) EncryptedStart() int {
	if enc, ok := AsEncrypted(o.base); ok {
		return enc.EncryptedStart()
	}
	return NoEncryptedStart
}

// PfscBlockSize implements PfscSource by forwarding to base when base
// decompresses a PFSC stream.
func (o *CowOverlay) PfscBlockSize() uint64 {
	if pf, ok := AsPfscSource(o.base); ok {
		return pf.PfscBlockSize()
	}
	return 0
}

// PfscBlockOffsets implements PfscSource by forwarding to base.
func (o *CowOverlay) PfscBlockOffsets() []uint64 {
	if pf, ok := AsPfscSource(o.base); ok {
		return pf.PfscBlockOffsets()
	}
	return nil
}

// WriteAt records a write into the overlay at the given logical offset,
// growing the overlay's logical length if the write extends past it.
// Segments that the new write overlaps or touches (including adjacency)
// are merged into a single segment spanning their union, so the segment
// map never contains overlapping or adjacent entries.
func (o *CowOverlay) WriteAt(offset int64, data []byte) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	if len(data) == 0 {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := uint64(offset)
	newEnd := start + uint64(len(data))
	if newEnd < start || newEnd > math.MaxInt64 {
		return fmt.Errorf("image: overlay write at %d length %d overflows", offset, len(data))
	}

	if newEnd > o.length {
		o.length = newEnd
	}

	// Collect existing segments overlapping or touching [start, newEnd].
	// "Touching" means adjacent (s.start == newEnd or s.end() == start),
	// so the two merge rather than leaving a zero-length gap.
	var overlapping []segment
	var kept []segment
	for _, s := range o.segments {
		if s.start <= newEnd && s.end() >= start {
			overlapping = append(overlapping, s)
		} else {
			kept = append(kept, s)
		}
	}

	if len(overlapping) == 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		kept = append(kept, segment{start: start, data: buf})
		o.segments = sortSegments(kept)
		return nil
	}

	mergedStart := start
	mergedEnd := newEnd
	for _, s := range overlapping {
		if s.start < mergedStart {
			mergedStart = s.start
		}
		if s.end() > mergedEnd {
			mergedEnd = s.end()
		}
	}

	merged := make([]byte, mergedEnd-mergedStart)
	if err := o.fillFromBaseLocked(mergedStart, merged); err != nil {
		return err
	}
	for _, s := range overlapping {
		copy(merged[s.start-mergedStart:], s.data)
	}
	copy(merged[start-mergedStart:], data)

	kept = append(kept, segment{start: mergedStart, data: merged})
	o.segments = sortSegments(kept)
	return nil
}

// fillFromBaseLocked reads base bytes into out for the range
// [offset, offset+len(out)), zero-filling anything past base's end. The
// caller must hold o.mu.
func (o *CowOverlay) fillFromBaseLocked(offset uint64, out []byte) error {
	for i := range out {
		out[i] = 0
	}
	baseLen := uint64(o.base.Len())
	if offset >= baseLen {
		return nil
	}
	want := baseLen - offset
	if want > uint64(len(out)) {
		want = uint64(len(out))
	}
	n := 0
	for uint64(n) < want {
		m, err := o.base.ReadAt(int64(offset)+int64(n), out[n:want])
		if err != nil {
			return fmt.Errorf("image: overlay base read at %d: %w", offset+uint64(n), err)
		}
		if m == 0 {
			break // base ended early; tail of out stays zero
		}
		n += m
	}
	return nil
}

func sortSegments(segs []segment) []segment {
	sort.Slice(segs, func(i, j int) bool { return segs[i].start < segs[j].start })
	return segs
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

var (
	_ ImageSource    = (*CowOverlay)(nil)
	_ OverlayCapable = (*CowOverlay)(nil)
	_ Encrypted      = (*CowOverlay)(nil)
	_ PfscSource     = (*CowOverlay)(nil)
)
