package image

import "math"

// The PFS layer stack has no cycles: every wrapper stores its underlying
// source by value/reference and forwards to it. Go has no trait
// inheritance, so "this stack contains encryption" / "this stack has a
// compression layer" / "this stack has a CoW overlay" are expressed as
// optional capability interfaces a wrapper can implement and delegate
// down the chain, rather than as marker traits. Callers type-assert an
// ImageSource against these to discover capabilities. Leaf sources
// implement only what they natively provide. The wrappers (CowOverlay,
// pfsc.Decompressor) implement all three interfaces unconditionally and
// report an absent capability through a sentinel: NoEncryptedStart, a
// nil *CowOverlay, or a zero PfscBlockSize and nil PfscBlockOffsets.

// Encrypted is implemented by an ImageSource (or a wrapper around one)
// that performs XTS-AES-128 sector decryption.
type Encrypted interface {
	ImageSource
	// EncryptedStart returns the smallest sector index that is subject to
	// decryption; sectors before it are passed through unchanged.
	EncryptedStart() int
}

// OverlayCapable is implemented by an ImageSource (or a wrapper around
// one) that carries a CowOverlay somewhere in its chain.
type OverlayCapable interface {
	ImageSource
	// Overlay returns the CowOverlay in this source's chain.
	Overlay() *CowOverlay
}

// PfscSource is implemented by an ImageSource that decompresses a PFSC
// (per-block deflate) stream, exposing its block layout for callers that
// want to inspect it (e.g. to validate or re-derive the block offset
// table) without depending on the concrete pfsc.Decompressor type.
type PfscSource interface {
	ImageSource
	// PfscBlockSize returns the per-block buffer size the decompressor
	// addresses and decodes against — the header's 0x0C field, which
	// despite its on-disk label of "compressed block size" is what
	// actually governs decompressed-block addressing and allocation; the
	// 0x10 original_block_size field is used only to classify a block as
	// deflated, stored, or sparse.
	PfscBlockSize() uint64
	// PfscBlockOffsets returns the compressed block offset table.
	PfscBlockOffsets() []uint64
}

// NoEncryptedStart is returned by a wrapper's EncryptedStart when nothing
// in the chain it forwards to implements Encrypted. It is larger than any
// real sector index, so a caller's usual "sector >= EncryptedStart" check
// correctly concludes that no sector is subject to decryption.
const NoEncryptedStart = math.MaxInt

// AsEncrypted type-asserts src against Encrypted. Wrappers that forward
// capabilities from an inner source use this to check the immediate
// source they hold, rather than repeating the assertion inline.
func AsEncrypted(src ImageSource) (Encrypted, bool) {
	enc, ok := src.(Encrypted)
	return enc, ok
}

// AsOverlayCapable type-asserts src against OverlayCapable.
func AsOverlayCapable(src ImageSource) (OverlayCapable, bool) {
	ov, ok := src.(OverlayCapable)
	return ov, ok
}

// AsPfscSource type-asserts src against PfscSource.
func AsPfscSource(src ImageSource) (PfscSource, bool) {
	pf, ok := src.(PfscSource)
	return pf, ok
}
