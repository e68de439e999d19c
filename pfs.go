package pfs

import (
	"fmt"

	"github.com/orbispkg/go-pfs/image"
)

// Pfs is an opened, immutable PFS image: its parsed header, every
// inode, and each inode's precomputed block map. A Pfs is safe for
// concurrent use by many goroutines; nothing about opening or reading
// it mutates shared state.
type Pfs struct {
	source    image.ImageSource
	plaintext *image.PlaintextSlice // non-nil only when opened over a borrowed, unencrypted slice
	header    *Header
	inodes    []*Inode
	blockMaps [][]uint32
}

// Root returns the filesystem's root directory.
func (p *Pfs) Root() *Directory {
	return &Directory{pfs: p, name: "", inodeIndex: p.header.SuperRootInode}
}

// Header returns the parsed superblock.
func (p *Pfs) Header() *Header { return p.header }

// OpenSlice opens a PFS image held entirely in memory. If the
// superblock declares encryption, ekpfs must be the 32-byte EKPFS
// master key; otherwise ekpfs is ignored and may be nil.
func OpenSlice(data []byte, ekpfs []byte) (*Pfs, error) {
	if len(data) < HeaderSize {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(data))}
	}
	header, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}

	if header.Mode.IsEncrypted() {
		return openEncryptedSlice(data, header, ekpfs)
	}
	return openUnencryptedSlice(data, header)
}

// OpenSliceUnencrypted opens data as a plaintext PFS image, failing if
// the superblock declares encryption.
func OpenSliceUnencrypted(data []byte) (*Pfs, error) {
	if len(data) < HeaderSize {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(data))}
	}
	header, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if header.Mode.IsEncrypted() {
		return nil, &UnsupportedModeError{Reason: "image is encrypted; use OpenSliceEncrypted or OpenSlice"}
	}
	return openUnencryptedSlice(data, header)
}

// OpenSliceEncrypted opens data as an encrypted PFS image using ekpfs,
// failing if the superblock does not declare encryption.
func OpenSliceEncrypted(data []byte, ekpfs []byte) (*Pfs, error) {
	if len(data) < HeaderSize {
		return nil, &MalformedSuperblockError{Reason: fmt.Sprintf("need %d bytes, got %d", HeaderSize, len(data))}
	}
	header, err := ParseHeader(data[:HeaderSize])
	if err != nil {
		return nil, err
	}
	if !header.Mode.IsEncrypted() {
		return nil, &UnsupportedModeError{Reason: "image is not encrypted; use OpenSliceUnencrypted or OpenSlice"}
	}
	return openEncryptedSlice(data, header, ekpfs)
}

func openUnencryptedSlice(data []byte, header *Header) (*Pfs, error) {
	plain := image.NewPlaintextSlice(data)
	return openInner(plain, header, plain)
}

func openEncryptedSlice(data []byte, header *Header, ekpfs []byte) (*Pfs, error) {
	if len(ekpfs) == 0 {
		return nil, &MissingEKPFSError{}
	}
	if err := validateBlockSize(header.BlockSize, true); err != nil {
		return nil, err
	}
	enc, err := image.NewEncryptedSlice(data, ekpfs, header.KeySeed, int(header.BlockSize)/image.SectorSize)
	if err != nil {
		return nil, fmt.Errorf("pfs: %w", err)
	}
	return openInner(enc, header, nil)
}

// OpenImage opens a PFS whose raw bytes are provided by an arbitrary
// image.ImageSource — e.g. a FileImage for a PFS nested inside another
// PFS, or a pfsc.Decompressor-wrapped source. Zero-copy slice access
// is unavailable through this entry point since src is not necessarily
// backed by a borrowed byte slice.
func OpenImage(src image.ImageSource) (*Pfs, error) {
	headerBuf := make([]byte, HeaderSize)
	if err := image.ReadFullAt(src, 0, headerBuf); err != nil {
		return nil, fmt.Errorf("pfs: read superblock: %w", err)
	}
	header, err := ParseHeader(headerBuf)
	if err != nil {
		return nil, err
	}
	if header.Mode.IsEncrypted() {
		return nil, &UnsupportedModeError{Reason: "OpenImage does not perform decryption; compose image.NewEncryptedSlice yourself"}
	}
	return openInner(src, header, nil)
}

// validateBlockSize checks the §4.11 step-2 block size invariant.
func validateBlockSize(blockSize uint32, encrypted bool) error {
	if !isPowerOfTwo(blockSize) {
		return &InvalidBlockSizeError{BlockSize: blockSize, Reason: "not a nonzero power of two"}
	}
	if encrypted && blockSize < image.SectorSize {
		return &InvalidBlockSizeError{BlockSize: blockSize, Reason: fmt.Sprintf("must be >= %d for an encrypted image", image.SectorSize)}
	}
	return nil
}

// openInner runs the §4.11 loader steps shared by every entry point:
// validate the block size, parse every inode, and precompute each
// inode's block map.
func openInner(src image.ImageSource, header *Header, plaintext *image.PlaintextSlice) (*Pfs, error) {
	if err := validateBlockSize(header.BlockSize, header.Mode.IsEncrypted()); err != nil {
		return nil, err
	}
	if header.SuperRootInode >= header.InodeCount {
		return nil, &InvalidInodeError{Index: header.SuperRootInode, Count: header.InodeCount}
	}

	recSize := inodeRecordSize(header.Mode.IsSigned())
	blockSize := int(header.BlockSize)
	inodesPerBlock := blockSize / recSize
	if inodesPerBlock == 0 {
		return nil, &InvalidBlockSizeError{BlockSize: header.BlockSize, Reason: fmt.Sprintf("too small to hold one %d-byte inode record", recSize)}
	}

	inodes := make([]*Inode, 0, header.InodeCount)
	blockBuf := make([]byte, blockSize)
	curBlock := uint64(1) // inode blocks start at block 1

	for uint64(len(inodes)) < header.InodeCount {
		n, err := src.ReadAt(int64(curBlock)*int64(blockSize), blockBuf)
		if err != nil {
			return nil, fmt.Errorf("pfs: read inode block %d: %w", curBlock, err)
		}
		if n < blockSize {
			return nil, fmt.Errorf("pfs: short read on inode block %d: got %d of %d bytes", curBlock, n, blockSize)
		}

		pos := 0
		for pos+recSize <= blockSize && uint64(len(inodes)) < header.InodeCount {
			in, err := parseInode(blockBuf[pos:pos+recSize], header.Mode.IsSigned())
			if err != nil {
				return nil, fmt.Errorf("pfs: parse inode %d: %w", len(inodes), err)
			}
			inodes = append(inodes, in)
			pos += recSize
		}
		curBlock++
	}

	blockMaps := make([][]uint32, len(inodes))
	readBlock := func(blockNumber uint32) ([]byte, error) {
		buf := make([]byte, blockSize)
		n, err := src.ReadAt(int64(blockNumber)*int64(blockSize), buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	for i, in := range inodes {
		bm, err := buildBlockMap(in, readBlock)
		if err != nil {
			return nil, fmt.Errorf("pfs: inode %d: %w", i, err)
		}
		blockMaps[i] = bm
	}

	return &Pfs{
		source:    src,
		plaintext: plaintext,
		header:    header,
		inodes:    inodes,
		blockMaps: blockMaps,
	}, nil
}
