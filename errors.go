package pfs

import "fmt"

// MalformedSuperblockError reports a structurally invalid PFS superblock:
// wrong version/format magic, an inode block count too large to
// represent, or too few bytes to hold the key seed.
type MalformedSuperblockError struct {
	Reason string
}

func (e *MalformedSuperblockError) Error() string {
	return fmt.Sprintf("pfs: malformed superblock: %s", e.Reason)
}

// InvalidBlockSizeError reports a block size that is zero, not a power
// of two, or (for an encrypted image) smaller than the XTS sector size.
type InvalidBlockSizeError struct {
	BlockSize uint32
	Reason    string
}

func (e *InvalidBlockSizeError) Error() string {
	return fmt.Sprintf("pfs: invalid block size %d: %s", e.BlockSize, e.Reason)
}

// InvalidInodeError reports a reference to an inode index that is out
// of range, including an out-of-range root inode or dirent target.
type InvalidInodeError struct {
	Index uint64
	Count uint64
}

func (e *InvalidInodeError) Error() string {
	return fmt.Sprintf("pfs: invalid inode index %d (inode count %d)", e.Index, e.Count)
}

// DoubleIndirectNotSupportedError reports a file whose block count
// requires resolving a triple-indirect (or deeper) pointer slot.
type DoubleIndirectNotSupportedError struct {
	BlockCount uint32
}

func (e *DoubleIndirectNotSupportedError) Error() string {
	return fmt.Sprintf("pfs: inode with block_count %d requires unsupported triple-indirect (or deeper) resolution", e.BlockCount)
}

// DirectoryCorruptError reports a packed dirent record that is
// malformed: a record size too small for its header and name, or an
// unrecognized dirent type.
type DirectoryCorruptError struct {
	Reason string
}

func (e *DirectoryCorruptError) Error() string {
	return fmt.Sprintf("pfs: directory corrupt: %s", e.Reason)
}

// MissingEKPFSError is returned when opening a superblock that declares
// encryption without supplying the EKPFS master key.
type MissingEKPFSError struct{}

func (e *MissingEKPFSError) Error() string {
	return "pfs: image is encrypted but no EKPFS key was provided"
}

// UnsupportedModeError is returned when an entry point incompatible
// with the image's declared mode (e.g. opening an encrypted image
// through the plaintext-only path) is used.
type UnsupportedModeError struct {
	Reason string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("pfs: unsupported mode: %s", e.Reason)
}
