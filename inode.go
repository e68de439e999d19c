package pfs

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	inodeHeaderSize = 100

	inodeTailUnsigned = 68  // 12 direct + 5 indirect, 4 bytes each
	inodeTailSigned   = 612 // 17 slots of (32-byte signature + 4-byte pointer)

	directPointerCount   = 12
	indirectPointerCount = 5

	// contiguousMarker in direct[1] marks an inode's data as one
	// contiguous run starting at direct[0].
	contiguousMarker = 0xFFFFFFFF
)

// File type bits found in Inode.Mode.
const (
	InodeModeFile = 0x8000
	InodeModeDir  = 0x4000
)

// InodeFlags holds the per-inode flag bits.
type InodeFlags uint32

// IsCompressed reports whether the inode's data is PFSC-compressed.
func (f InodeFlags) IsCompressed() bool { return f&0x1 != 0 }

// Timestamp is a PFS (seconds, nanoseconds) pair.
type Timestamp struct {
	Sec  uint64
	Nsec uint32
}

// Time converts t to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nsec)).UTC()
}

// Inode is a fully parsed inode record: its fixed header plus the
// resolved direct and indirect block pointer slots (and, for signed
// images, their signatures).
type Inode struct {
	Mode            uint16
	Nlink           uint16
	Flags           InodeFlags
	Size            uint64
	CompressedSize  uint64
	AccessTime      Timestamp
	ModifyTime      Timestamp
	ChangeTime      Timestamp
	BirthTime       Timestamp
	UID            uint32
	GID            uint32
	BlockCount     uint32
	Signed         bool
	Direct         [directPointerCount]uint32
	Indirect       [indirectPointerCount]uint32
	DirectSig      [directPointerCount][32]byte
	IndirectSig    [indirectPointerCount][32]byte
}

// IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool { return i.Mode&InodeModeDir != 0 }

// IsFile reports whether the inode is a regular file.
func (i *Inode) IsFile() bool { return i.Mode&InodeModeFile != 0 }

// inodeRecordSize returns the total on-disk size of one inode record
// (header plus pointer tail) for the given mode.
func inodeRecordSize(signed bool) int {
	if signed {
		return inodeHeaderSize + inodeTailSigned
	}
	return inodeHeaderSize + inodeTailUnsigned
}

// parseInode decodes one inode record from buf, which must be at least
// inodeRecordSize(signed) bytes.
func parseInode(buf []byte, signed bool) (*Inode, error) {
	recSize := inodeRecordSize(signed)
	if len(buf) < recSize {
		return nil, fmt.Errorf("pfs: inode record truncated: need %d bytes, got %d", recSize, len(buf))
	}

	in := &Inode{
		Mode:           binary.LittleEndian.Uint16(buf[0x00:0x02]),
		Nlink:          binary.LittleEndian.Uint16(buf[0x02:0x04]),
		Flags:          InodeFlags(binary.LittleEndian.Uint32(buf[0x04:0x08])),
		Size:           binary.LittleEndian.Uint64(buf[0x08:0x10]),
		CompressedSize: binary.LittleEndian.Uint64(buf[0x10:0x18]),
		AccessTime:     Timestamp{Sec: binary.LittleEndian.Uint64(buf[0x18:0x20]), Nsec: binary.LittleEndian.Uint32(buf[0x38:0x3C])},
		ModifyTime:     Timestamp{Sec: binary.LittleEndian.Uint64(buf[0x20:0x28]), Nsec: binary.LittleEndian.Uint32(buf[0x3C:0x40])},
		ChangeTime:     Timestamp{Sec: binary.LittleEndian.Uint64(buf[0x28:0x30]), Nsec: binary.LittleEndian.Uint32(buf[0x40:0x44])},
		BirthTime:      Timestamp{Sec: binary.LittleEndian.Uint64(buf[0x30:0x38]), Nsec: binary.LittleEndian.Uint32(buf[0x44:0x48])},
		UID:            binary.LittleEndian.Uint32(buf[0x48:0x4C]),
		GID:            binary.LittleEndian.Uint32(buf[0x4C:0x50]),
		BlockCount:     binary.LittleEndian.Uint32(buf[0x60:0x64]),
		Signed:         signed,
	}

	tail := buf[inodeHeaderSize:recSize]
	if signed {
		const slotSize = 36
		for s := 0; s < directPointerCount; s++ {
			off := s * slotSize
			copy(in.DirectSig[s][:], tail[off:off+32])
			in.Direct[s] = binary.LittleEndian.Uint32(tail[off+32 : off+36])
		}
		for s := 0; s < indirectPointerCount; s++ {
			off := (directPointerCount+s)*slotSize
			copy(in.IndirectSig[s][:], tail[off:off+32])
			in.Indirect[s] = binary.LittleEndian.Uint32(tail[off+32 : off+36])
		}
	} else {
		for s := 0; s < directPointerCount; s++ {
			in.Direct[s] = binary.LittleEndian.Uint32(tail[s*4 : s*4+4])
		}
		for s := 0; s < indirectPointerCount; s++ {
			off := (directPointerCount + s) * 4
			in.Indirect[s] = binary.LittleEndian.Uint32(tail[off : off+4])
		}
	}

	return in, nil
}

// pointerEntrySize returns the byte size of one block-pointer entry
// within an indirect block: 4 bytes for an unsigned inode, or a
// 32-byte signature followed by a 4-byte pointer for a signed one.
func pointerEntrySize(signed bool) int {
	if signed {
		return 36
	}
	return 4
}

// readPointerEntries parses count pointer entries (pointer value only;
// signatures, if present, are skipped) out of buf.
func readPointerEntries(buf []byte, signed bool, count int) ([]uint32, error) {
	entrySize := pointerEntrySize(signed)
	need := entrySize * count
	if len(buf) < need {
		return nil, fmt.Errorf("pfs: indirect block truncated: need %d bytes, got %d", need, len(buf))
	}
	out := make([]uint32, count)
	for i := 0; i < count; i++ {
		off := i*entrySize + entrySize - 4
		out[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return out, nil
}

// blockReader reads one physical block's raw bytes given its block
// number. buildBlockMap uses it to walk indirect pointer blocks.
type blockReader func(blockNumber uint32) ([]byte, error)

// buildBlockMap resolves an inode's logical block map: the ordered
// list of physical block numbers backing its logical blocks 0..N-1.
func buildBlockMap(in *Inode, readBlock blockReader) ([]uint32, error) {
	n := int(in.BlockCount)
	if n == 0 {
		return nil, nil
	}

	if in.Direct[1] == contiguousMarker {
		blocks := make([]uint32, n)
		base := in.Direct[0]
		for i := 0; i < n; i++ {
			blocks[i] = base + uint32(i)
		}
		return blocks, nil
	}

	blocks := make([]uint32, 0, n)
	for i := 0; i < directPointerCount && len(blocks) < n; i++ {
		blocks = append(blocks, in.Direct[i])
	}
	if len(blocks) >= n {
		return blocks[:n], nil
	}

	entriesPerBlock := func(blockLen int) int {
		return blockLen / pointerEntrySize(in.Signed)
	}

	// Single indirect: indirect[0] is a flat array of leaf pointers.
	buf, err := readBlock(in.Indirect[0])
	if err != nil {
		return nil, fmt.Errorf("pfs: read single-indirect block %d: %w", in.Indirect[0], err)
	}
	leaves, err := readPointerEntries(buf, in.Signed, entriesPerBlock(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("pfs: parse single-indirect block %d: %w", in.Indirect[0], err)
	}
	for _, p := range leaves {
		if len(blocks) >= n {
			return blocks[:n], nil
		}
		blocks = append(blocks, p)
	}
	if len(blocks) >= n {
		return blocks[:n], nil
	}

	// Double indirect: indirect[1] is an array of pointers to further
	// leaf-pointer blocks.
	buf, err = readBlock(in.Indirect[1])
	if err != nil {
		return nil, fmt.Errorf("pfs: read double-indirect block %d: %w", in.Indirect[1], err)
	}
	midLevel, err := readPointerEntries(buf, in.Signed, entriesPerBlock(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("pfs: parse double-indirect block %d: %w", in.Indirect[1], err)
	}
	for _, mid := range midLevel {
		if len(blocks) >= n {
			return blocks[:n], nil
		}
		leafBuf, err := readBlock(mid)
		if err != nil {
			return nil, fmt.Errorf("pfs: read double-indirect leaf block %d: %w", mid, err)
		}
		leafPointers, err := readPointerEntries(leafBuf, in.Signed, entriesPerBlock(len(leafBuf)))
		if err != nil {
			return nil, fmt.Errorf("pfs: parse double-indirect leaf block %d: %w", mid, err)
		}
		for _, p := range leafPointers {
			if len(blocks) >= n {
				return blocks[:n], nil
			}
			blocks = append(blocks, p)
		}
	}
	if len(blocks) >= n {
		return blocks[:n], nil
	}

	// indirect[2..5] would require triple-indirect (or deeper)
	// resolution, which this reader does not support.
	return nil, &DoubleIndirectNotSupportedError{BlockCount: in.BlockCount}
}

// isContiguous reports whether in's data occupies a single run of
// physical blocks starting at direct[0]: either because direct[1]
// carries the contiguous marker, or trivially because the file fits
// in one block. It returns false for a zero-block (empty) file; the
// empty case is handled separately by zero-copy callers.
func isContiguous(in *Inode) bool {
	if in.BlockCount == 0 {
		return false
	}
	if in.Direct[1] == contiguousMarker {
		return true
	}
	return in.BlockCount == 1
}
