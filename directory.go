package pfs

import (
	"fmt"
	"sort"
)

// Directory is a directory reached either as the filesystem root
// (Pfs.Root) or through directory enumeration.
type Directory struct {
	pfs        *Pfs
	name       string
	inodeIndex uint64
}

// Name implements Entry.
func (d *Directory) Name() string { return d.name }

// IsDir implements Entry.
func (d *Directory) IsDir() bool { return true }

// InodeIndex implements Entry.
func (d *Directory) InodeIndex() uint64 { return d.inodeIndex }

// DirEntries is the result of enumerating a directory: an ordered,
// deduplicated mapping from name to Entry.
type DirEntries struct {
	names  []string
	byName map[string]Entry
}

// Names returns entry names in strict byte-lexicographic ascending
// order, with no duplicates.
func (e *DirEntries) Names() []string { return e.names }

// Get looks up an entry by name.
func (e *DirEntries) Get(name []byte) (Entry, bool) {
	entry, ok := e.byName[string(name)]
	return entry, ok
}

// Len returns the number of distinct entries.
func (e *DirEntries) Len() int { return len(e.names) }

// Open reads and parses this directory's data blocks, returning its
// entries. Self (".") and parent ("..") dirents are skipped; an
// unrecognized dirent type is a hard error for the enclosing block.
// Duplicate names collapse to the last-seen entry, per §4.10.
func (d *Directory) Open() (*DirEntries, error) {
	blockMap := d.pfs.blockMaps[d.inodeIndex]
	blockSize := int(d.pfs.header.BlockSize)

	byName := make(map[string]Entry)

	for _, physBlock := range blockMap {
		block := make([]byte, blockSize)
		n, err := d.pfs.source.ReadAt(int64(uint64(physBlock)*uint64(blockSize)), block)
		if err != nil {
			return nil, fmt.Errorf("pfs: read directory inode %d block %d: %w", d.inodeIndex, physBlock, err)
		}
		entries, err := parseDirents(block[:n], uint64(len(d.pfs.inodes)))
		if err != nil {
			return nil, err
		}

		for _, de := range entries {
			name := string(de.Name)
			switch de.Type {
			case DirentTypeSelf, DirentTypeParent:
				continue
			case DirentTypeFile:
				byName[name] = &FileEntry{pfs: d.pfs, name: name, inodeIndex: uint64(de.InodeIndex)}
			case DirentTypeDir:
				byName[name] = &Directory{pfs: d.pfs, name: name, inodeIndex: uint64(de.InodeIndex)}
			default:
				return nil, &DirectoryCorruptError{Reason: fmt.Sprintf("unknown dirent type %d for %q", de.Type, name)}
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &DirEntries{names: names, byName: byName}, nil
}
