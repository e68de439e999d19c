package pfs

import (
	"encoding/binary"
	"fmt"
)

const direntHeaderSize = 16

// Dirent type tags.
const (
	DirentTypeFile   = 2
	DirentTypeDir    = 3
	DirentTypeSelf   = 4
	DirentTypeParent = 5
)

// dirent is one packed directory entry record.
type dirent struct {
	InodeIndex uint32
	Type       uint32
	Name       []byte
	RecordSize uint32
}

// parseDirents walks a directory data block, a packed sequence of
// dirent records terminated by a sentinel record with RecordSize == 0
// (or by running out of buffer).
func parseDirents(block []byte, inodeCount uint64) ([]dirent, error) {
	var out []dirent
	pos := 0
	for pos < len(block) {
		if pos+direntHeaderSize > len(block) {
			break
		}
		recordSize := binary.LittleEndian.Uint32(block[pos+12 : pos+16])
		if recordSize == 0 {
			break
		}
		if int(recordSize) < direntHeaderSize || pos+int(recordSize) > len(block) {
			return nil, &DirectoryCorruptError{Reason: fmt.Sprintf("record size %d at offset %d does not fit in block", recordSize, pos)}
		}

		inodeIndex := binary.LittleEndian.Uint32(block[pos : pos+4])
		typ := binary.LittleEndian.Uint32(block[pos+4 : pos+8])
		nameLen := binary.LittleEndian.Uint32(block[pos+8 : pos+12])
		if int(nameLen) > int(recordSize)-direntHeaderSize {
			return nil, &DirectoryCorruptError{Reason: fmt.Sprintf("name length %d exceeds record size %d at offset %d", nameLen, recordSize, pos)}
		}
		if uint64(inodeIndex) >= inodeCount {
			return nil, &InvalidInodeError{Index: uint64(inodeIndex), Count: inodeCount}
		}

		name := make([]byte, nameLen)
		copy(name, block[pos+direntHeaderSize:pos+direntHeaderSize+int(nameLen)])

		out = append(out, dirent{
			InodeIndex: inodeIndex,
			Type:       typ,
			Name:       name,
			RecordSize: recordSize,
		})

		pos += int(recordSize)
	}
	return out, nil
}
