package pfs

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the fixed size of the PFS superblock.
const HeaderSize = 0x380

const (
	expectedVersion = 1
	expectedFormat  = 20130315
)

// Mode holds the superblock's mode bitflags.
type Mode uint16

const (
	// ModeSigned marks inodes as carrying per-pointer signatures (the
	// 612-byte pointer tail instead of the 68-byte one).
	ModeSigned Mode = 0x1
	// Mode64Bit marks the image as using the 64-bit inode layout. The
	// bit is preserved and reported but does not change how this
	// reader parses inodes; see the open-question decisions in
	// DESIGN.md.
	Mode64Bit Mode = 0x2
	// ModeEncrypted marks the image's data blocks as XTS-AES-128
	// encrypted from BlockSize onward.
	ModeEncrypted Mode = 0x4
)

// IsSigned reports whether inodes use the signed (signature-carrying)
// pointer tail layout.
func (m Mode) IsSigned() bool { return m&ModeSigned != 0 }

// Is64Bit reports whether the 64-bit inode layout bit is set. The
// effect of this bit on layout is not exercised by any known image and
// is not interpreted here; it is surfaced for callers that want to
// branch on it themselves.
func (m Mode) Is64Bit() bool { return m&Mode64Bit != 0 }

// IsEncrypted reports whether the image's data blocks are XTS
// encrypted.
func (m Mode) IsEncrypted() bool { return m&ModeEncrypted != 0 }

// String renders the set mode bits as a comma-separated list, e.g.
// "signed,encrypted", or "none" if no bits are set.
func (m Mode) String() string {
	if m == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += ","
		}
		s += name
	}
	if m.IsSigned() {
		add("signed")
	}
	if m.Is64Bit() {
		add("64bit")
	}
	if m.IsEncrypted() {
		add("encrypted")
	}
	return s
}

// Header is the parsed PFS superblock.
type Header struct {
	Version         uint64
	Format          uint64
	Mode            Mode
	BlockSize       uint32
	BlockCount      uint64
	InodeCount      uint64
	DataBlockCount  uint64
	InodeBlockCount uint64
	SuperRootInode  uint64
	KeySeed         [16]byte
}

// ParseHeader parses a HeaderSize-byte superblock. It rejects any
// version other than 1 or format other than 20130315, and rejects an
// inode block count that does not fit in 32 bits (see the open
// question on ndinodeblock's width in the package design notes).
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(buf))}
	}

	h := &Header{
		Version:         binary.LittleEndian.Uint64(buf[0x00:0x08]),
		Format:          binary.LittleEndian.Uint64(buf[0x08:0x10]),
		Mode:            Mode(binary.LittleEndian.Uint16(buf[0x1C:0x1E])),
		BlockSize:       binary.LittleEndian.Uint32(buf[0x20:0x24]),
		BlockCount:      binary.LittleEndian.Uint64(buf[0x28:0x30]),
		InodeCount:      binary.LittleEndian.Uint64(buf[0x30:0x38]),
		DataBlockCount:  binary.LittleEndian.Uint64(buf[0x38:0x40]),
		InodeBlockCount: binary.LittleEndian.Uint64(buf[0x40:0x48]),
		SuperRootInode:  binary.LittleEndian.Uint64(buf[0x48:0x50]),
	}
	copy(h.KeySeed[:], buf[0x370:0x380])

	if h.Version != expectedVersion {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("unexpected version %d", h.Version)}
	}
	if h.Format != expectedFormat {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("unexpected format %d", h.Format)}
	}
	if h.InodeBlockCount > math.MaxUint32 {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("inode_block_count %d exceeds uint32 range", h.InodeBlockCount)}
	}

	return h, nil
}

// isPowerOfTwo reports whether n is a nonzero power of two.
func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
