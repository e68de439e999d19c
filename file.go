package pfs

import (
	"fmt"
	"io"

	"github.com/orbispkg/go-pfs/image"
)

// Entry is a named directory entry: either a FileEntry or a Directory.
type Entry interface {
	Name() string
	IsDir() bool
	InodeIndex() uint64
}

// FileEntry is a regular file reached through directory enumeration.
type FileEntry struct {
	pfs        *Pfs
	name       string
	inodeIndex uint64
}

// Name implements Entry.
func (f *FileEntry) Name() string { return f.name }

// IsDir implements Entry.
func (f *FileEntry) IsDir() bool { return false }

// InodeIndex implements Entry.
func (f *FileEntry) InodeIndex() uint64 { return f.inodeIndex }

// Size returns the file's logical byte length.
func (f *FileEntry) Size() uint64 {
	return f.pfs.inodes[f.inodeIndex].Size
}

// Compressed reports whether the file's inode is flagged as
// PFSC-compressed. Callers must wrap AsImage() in pfsc.Open themselves
// when this is true; this package does not decompress implicitly.
func (f *FileEntry) Compressed() bool {
	return f.pfs.inodes[f.inodeIndex].Flags.IsCompressed()
}

// ReadAt reads the file's (possibly still PFSC-compressed) raw bytes
// at the given logical offset. See §4.9: it issues one underlying
// positional read per logical block touched.
func (f *FileEntry) ReadAt(offset int64, buf []byte) (int, error) {
	return f.pfs.readFileAt(f.inodeIndex, offset, buf)
}

// AsSlice returns a zero-copy borrow of the file's bytes when the Pfs
// was opened over a borrowed plaintext slice, the file is uncompressed,
// and its block map is contiguous. Otherwise it returns (nil, false)
// and the caller must use ReadAt.
func (f *FileEntry) AsSlice() ([]byte, bool) {
	return f.pfs.asSlice(f.inodeIndex)
}

// AsImage adapts the file to an image.ImageSource, e.g. for
// pfsc.Open or for opening it as a nested PFS via OpenImage.
func (f *FileEntry) AsImage() image.ImageSource {
	return f.pfs.fileImage(f.inodeIndex)
}

// Reader returns a streaming io.Reader/io.Seeker view of the file, for
// callers that want to hand it to a stream-oriented API (io.Copy,
// archive/zip's reader, ...) instead of calling ReadAt directly.
func (f *FileEntry) Reader() *FileReader {
	return &FileReader{f: f, size: int64(f.Size())}
}

// FileReader adapts a FileEntry's positional ReadAt into an
// io.Reader/io.Seeker with its own read cursor. Each FileReader has its
// own cursor, so multiple readers over the same FileEntry are
// independent; the underlying Pfs is unaffected by either.
type FileReader struct {
	f    *FileEntry
	pos  int64
	size int64
}

// Read implements io.Reader.
func (r *FileReader) Read(buf []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}
	n, err := r.f.ReadAt(r.pos, buf)
	r.pos += int64(n)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (r *FileReader) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = r.pos + offset
	case io.SeekEnd:
		newPos = r.size + offset
	default:
		return 0, fmt.Errorf("pfs: FileReader.Seek: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("pfs: FileReader.Seek: negative position %d", newPos)
	}
	r.pos = newPos
	return newPos, nil
}

var (
	_ io.Reader = (*FileReader)(nil)
	_ io.Seeker = (*FileReader)(nil)
)

// FileImage is an image.ImageSource view of one PFS file's raw bytes.
// It holds no mutable state beyond the precomputed, immutable block
// map, so concurrent ReadAt calls need no synchronization.
type FileImage struct {
	pfs        *Pfs
	inodeIndex uint64
}

// Len implements image.ImageSource.
func (fi *FileImage) Len() int64 {
	return int64(fi.pfs.inodes[fi.inodeIndex].Size)
}

// ReadAt implements image.ImageSource.
func (fi *FileImage) ReadAt(offset int64, buf []byte) (int, error) {
	return fi.pfs.readFileAt(fi.inodeIndex, offset, buf)
}

var _ image.ImageSource = (*FileImage)(nil)

// fileImage returns a FileImage bound to inodeIndex.
func (p *Pfs) fileImage(inodeIndex uint64) *FileImage {
	return &FileImage{pfs: p, inodeIndex: inodeIndex}
}

// readFileAt implements the positional read algorithm of §4.9 against
// inodeIndex's precomputed block map.
func (p *Pfs) readFileAt(inodeIndex uint64, offset int64, buf []byte) (int, error) {
	in := p.inodes[inodeIndex]
	if len(buf) == 0 || offset < 0 || uint64(offset) >= in.Size {
		return 0, nil
	}

	blockMap := p.blockMaps[inodeIndex]
	blockSize := uint64(p.header.BlockSize)
	copied := 0
	pos := uint64(offset)

	for copied < len(buf) && pos < in.Size {
		blockIndex := pos / blockSize
		if blockIndex >= uint64(len(blockMap)) {
			return copied, fmt.Errorf("pfs: logical block %d out of range of block map (len %d)", blockIndex, len(blockMap))
		}
		physBlock := blockMap[blockIndex]

		blockEnd := (blockIndex + 1) * blockSize
		fileLimit := blockEnd
		if in.Size < fileLimit {
			fileLimit = in.Size
		}
		remaining := fileLimit - pos

		want := uint64(len(buf) - copied)
		if want < remaining {
			remaining = want
		}

		physOffset := uint64(physBlock)*blockSize + pos%blockSize
		n, err := p.source.ReadAt(int64(physOffset), buf[copied:uint64(copied)+remaining])
		if err != nil {
			return copied, fmt.Errorf("pfs: read inode %d at logical offset %d: %w", inodeIndex, pos, err)
		}
		copied += n
		pos += uint64(n)
		if uint64(n) < remaining {
			break
		}
	}

	return copied, nil
}

// asSlice implements FileEntry.AsSlice / zero-copy access.
func (p *Pfs) asSlice(inodeIndex uint64) ([]byte, bool) {
	if p.plaintext == nil {
		return nil, false
	}
	in := p.inodes[inodeIndex]
	if in.Flags.IsCompressed() {
		return nil, false
	}
	if in.Size == 0 {
		return []byte{}, true
	}
	if !isContiguous(in) {
		return nil, false
	}

	blockSize := uint64(p.header.BlockSize)
	blockMap := p.blockMaps[inodeIndex]
	start := uint64(blockMap[0]) * blockSize
	data := p.plaintext.Bytes()
	if start+in.Size > uint64(len(data)) {
		return nil, false
	}
	return data[start : start+in.Size], true
}
