// Package pfs implements a read-only, thread-safe view of a PlayStation 4
// PFS (PlayStation File System) image as found inside a PKG distribution
// package.
//
// It does not parse the PKG outer container itself, does not decrypt PKG
// entries, and does not write filesystem trees to disk. Instead it takes
// the raw PFS bytes (and, for encrypted images, the EKPFS master key
// recovered by the caller from the PKG) and exposes a composable stack of
// positional byte sources:
//
//   - image.PlaintextSlice / image.EncryptedSlice — leaf sources over a
//     byte buffer, the latter performing on-demand XTS-AES-128 sector
//     decryption.
//   - pfsc.Decompressor — a per-block deflate decompression adapter for
//     PFSC-wrapped files.
//   - image.CowOverlay — a sparse in-memory copy-on-write patch buffer.
//   - pfs.FileImage — a PFS file viewed as an image.ImageSource, enabling
//     a PFS nested inside another PFS.
//
// On top of that stack, the pfs package parses the PFS superblock, loads
// inodes and their block maps, and exposes a root pfs.Directory that can
// be walked for files and subdirectories.
//
// All reads are positional (offset, buffer) -> n, with no shared mutable
// cursor, so a single opened Pfs can be read concurrently from many
// goroutines without external synchronization.
//
// Some examples:
//
// 1. Open an unencrypted PFS image held entirely in memory and list the
//    root directory:
//
//	data, _ := os.ReadFile("pfs_image.dat")
//	fs, err := pfs.OpenSlice(data, nil)
//	root := fs.Root()
//	entries, err := root.Open()
//
// 2. Open an encrypted PFS image given its EKPFS master key:
//
//	fs, err := pfs.OpenSlice(data, ekpfs)
//
// 3. Read a compressed file's contents:
//
//	f, _ := entries.Get([]byte("eboot.bin"))
//	dec, _ := pfsc.Open(f.(*pfs.FileEntry).AsImage())
//	buf := make([]byte, 4096)
//	n, err := dec.ReadAt(0, buf)
package pfs
