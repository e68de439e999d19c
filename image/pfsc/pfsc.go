// Package pfsc implements the PFSC per-block deflate decompression
// adapter: it wraps any image.ImageSource whose bytes are a PFSC stream
// and exposes the decompressed contents as an image.ImageSource in its
// own right.
package pfsc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/orbispkg/go-pfs/image"
)

const (
	headerSize = 48
	magic      = "PFSC"
)

// PFSC header field offsets within the 48-byte little-endian header:
// 0x00 magic "PFSC", 0x0C compressed block size, 0x10 original block
// size, 0x18 block offset table offset, 0x28 original data length. The
// fields in between are unused by this reader.

// Decompressor wraps an underlying image.ImageSource whose bytes form a
// PFSC stream, exposing the decompressed data through ReadAt/Len. Each
// call decompresses only the block(s) it touches; no shared mutable
// state is kept beyond the (immutable, read-once-at-open) block offset
// table, so concurrent reads need no locking.
//
// The header carries two block-size-shaped fields that serve different
// purposes: blockSize (0x0C) is the per-block buffer size that governs
// addressing, allocation, and decode output throughout ReadAt and
// decompressBlock; originalBlockSize (0x10) is used only to classify a
// block's stored form (deflated/stored/sparse) and in the block-count
// formula in Open. Conflating the two decodes a block into a
// wrongly-sized buffer whenever a real image's compressed form differs
// from its decompressed form.
type Decompressor struct {
	source            image.ImageSource
	blockSize         uint32
	originalBlockSize uint64
	originalSize      uint64
	blockOffsets      []uint64 // N+1 entries; block i spans [blockOffsets[i], blockOffsets[i+1])
}

// Open reads the PFSC header and block offset table from source and
// returns a Decompressor ready to serve decompressed reads.
func Open(source image.ImageSource) (*Decompressor, error) {
	var headerBuf [headerSize]byte
	if err := image.ReadFullAt(source, 0, headerBuf[:]); err != nil {
		return nil, fmt.Errorf("pfsc: read header: %w", err)
	}

	if !bytes.Equal(headerBuf[0:4], []byte(magic)) {
		return nil, fmt.Errorf("pfsc: invalid magic %q", headerBuf[0:4])
	}

	blockSize := binary.LittleEndian.Uint32(headerBuf[0x0C:0x10])
	originalBlockSize := binary.LittleEndian.Uint64(headerBuf[0x10:0x18])
	blockOffsetsOffset := binary.LittleEndian.Uint64(headerBuf[0x18:0x20])
	originalSize := binary.LittleEndian.Uint64(headerBuf[0x28:0x30])

	if originalBlockSize == 0 {
		return nil, fmt.Errorf("pfsc: original block size is zero")
	}

	blockCount := originalSize/originalBlockSize + 1
	offsets := make([]uint64, blockCount)
	offsetBuf := make([]byte, blockCount*8)
	if err := image.ReadFullAt(source, int64(blockOffsetsOffset), offsetBuf); err != nil {
		return nil, fmt.Errorf("pfsc: read block offset table: %w", err)
	}
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(offsetBuf[i*8 : i*8+8])
	}

	return &Decompressor{
		source:            source,
		blockSize:         blockSize,
		originalBlockSize: originalBlockSize,
		originalSize:      originalSize,
		blockOffsets:      offsets,
	}, nil
}

// Len implements image.ImageSource.
func (d *Decompressor) Len() int64 {
	return int64(d.originalSize)
}

// BlockSize returns the per-block buffer size used to address and
// decode the PFSC stream (the header's 0x0C field). This is distinct
// from the 0x10 original_block_size field, which is used only to
// classify a block as deflated, stored, or sparse.
func (d *Decompressor) BlockSize() uint32 {
	return d.blockSize
}

// BlockOffsets returns the compressed block offset table. Entry i is the
// byte offset within the underlying source where compressed block i
// begins; the compressed size of block i is BlockOffsets()[i+1] -
// BlockOffsets()[i].
func (d *Decompressor) BlockOffsets() []uint64 {
	return d.blockOffsets
}

// ReadAt implements image.ImageSource.
func (d *Decompressor) ReadAt(offset int64, buf []byte) (int, error) {
	if offset < 0 || uint64(offset) >= d.originalSize || len(buf) == 0 {
		return 0, nil
	}

	blockSize := uint64(d.blockSize)
	copied := 0
	pos := uint64(offset)
	blockBuf := make([]byte, d.blockSize)

	for copied < len(buf) && pos < d.originalSize {
		blockIndex := pos / blockSize
		offsetInBlock := pos % blockSize

		if err := d.decompressBlock(blockIndex, blockBuf); err != nil {
			return copied, err
		}

		blockEnd := (blockIndex + 1) * blockSize
		validInBlock := blockSize
		if blockEnd > d.originalSize {
			validInBlock = d.originalSize - blockIndex*blockSize
		}

		available := validInBlock - offsetInBlock
		want := uint64(len(buf) - copied)
		n := available
		if want < n {
			n = want
		}

		copy(buf[copied:uint64(copied)+n], blockBuf[offsetInBlock:offsetInBlock+n])
		copied += int(n)
		pos += n
	}

	return copied, nil
}

// decompressBlock decodes PFSC block num into out, which must be exactly
// d.blockSize bytes. The compressed size (blockOffsets[num+1] -
// blockOffsets[num]) is compared against originalBlockSize to classify
// the block as deflated, stored, or sparse.
func (d *Decompressor) decompressBlock(num uint64, out []byte) error {
	if int(num)+1 >= len(d.blockOffsets) {
		return fmt.Errorf("pfsc: block #%d out of range", num)
	}
	offset := d.blockOffsets[num]
	size := d.blockOffsets[num+1] - offset

	switch {
	case size < d.originalBlockSize:
		compressed := make([]byte, size)
		if err := image.ReadFullAt(d.source, int64(offset), compressed); err != nil {
			return fmt.Errorf("pfsc: read compressed block #%d: %w", num, err)
		}
		fr := flate.NewReader(bytes.NewReader(compressed))
		defer fr.Close()
		n, err := io.ReadFull(fr, out)
		if err != nil {
			return fmt.Errorf("pfsc: inflate block #%d: %w", num, err)
		}
		// Confirm the deflate stream ends exactly where out ends: one more
		// byte of input should yield io.EOF, not more data.
		var extra [1]byte
		if m, err := fr.Read(extra[:]); m != 0 || !errors.Is(err, io.EOF) {
			return fmt.Errorf("pfsc: block #%d did not reach deflate stream end at %d bytes", num, n)
		}

	case size == d.originalBlockSize:
		if err := image.ReadFullAt(d.source, int64(offset), out); err != nil {
			return fmt.Errorf("pfsc: read stored block #%d: %w", num, err)
		}

	default: // size > originalBlockSize: sparse block
		for i := range out {
			out[i] = 0
		}
	}

	return nil
}

// PfscBlockSize implements image.PfscSource.
func (d *Decompressor) PfscBlockSize() uint64 {
	return uint64(d.blockSize)
}

// PfscBlockOffsets implements image.PfscSource.
func (d *Decompressor) PfscBlockOffsets() []uint64 {
	return d.blockOffsets
}

// EncryptedStart implements image.Encrypted by forwarding to source when
// the PFSC stream is itself read out of an encrypted or overlaid source.
// A Decompressor never encrypts anything of its own; it only reports a
// boundary that already exists below it in the chain.
func (d *Decompressor) EncryptedStart() int {
	if enc, ok := image.AsEncrypted(d.source); ok {
		return enc.EncryptedStart()
	}
	return image.NoEncryptedStart
}

// Overlay implements image.OverlayCapable by forwarding to source when a
// CowOverlay sits somewhere below this Decompressor.
func (d *Decompressor) Overlay() *image.CowOverlay {
	if ov, ok := image.AsOverlayCapable(d.source); ok {
		return ov.Overlay()
	}
	return nil
}

var (
	_ image.ImageSource    = (*Decompressor)(nil)
	_ image.PfscSource     = (*Decompressor)(nil)
	_ image.Encrypted      = (*Decompressor)(nil)
	_ image.OverlayCapable = (*Decompressor)(nil)
)
