package pfs

import (
	"encoding/binary"
	"errors"
	"testing"
)

func buildHeaderBytes(t *testing.T, mode Mode, blockSize uint32, inodeCount, superRootInode uint64) []byte {
	t.Helper()
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0x00:0x08], expectedVersion)
	binary.LittleEndian.PutUint64(buf[0x08:0x10], expectedFormat)
	binary.LittleEndian.PutUint16(buf[0x1C:0x1E], uint16(mode))
	binary.LittleEndian.PutUint32(buf[0x20:0x24], blockSize)
	binary.LittleEndian.PutUint64(buf[0x30:0x38], inodeCount)
	binary.LittleEndian.PutUint64(buf[0x48:0x50], superRootInode)
	for i := range buf[0x370:0x380] {
		buf[0x370+i] = byte(i + 1)
	}
	return buf
}

func TestParseHeaderRoundTrip(t *testing.T) {
	buf := buildHeaderBytes(t, ModeSigned|ModeEncrypted, 0x10000, 5, 2)
	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.BlockSize != 0x10000 || h.InodeCount != 5 || h.SuperRootInode != 2 {
		t.Fatalf("parsed header = %+v", h)
	}
	if !h.Mode.IsSigned() || !h.Mode.IsEncrypted() || h.Mode.Is64Bit() {
		t.Fatalf("mode = %v", h.Mode)
	}
	for i, b := range h.KeySeed {
		if b != byte(i+1) {
			t.Fatalf("KeySeed[%d] = %d, want %d", i, b, i+1)
		}
	}
}

func TestParseHeaderRejectsWrongVersion(t *testing.T) {
	buf := buildHeaderBytes(t, 0, 0x1000, 1, 0)
	binary.LittleEndian.PutUint64(buf[0x00:0x08], 2)
	_, err := ParseHeader(buf)
	var malformed *MalformedSuperblockError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedSuperblockError", err)
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderSize-1))
	var malformed *MalformedSuperblockError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want *MalformedSuperblockError", err)
	}
}

func TestModeString(t *testing.T) {
	cases := []struct {
		mode Mode
		want string
	}{
		{0, "none"},
		{ModeSigned, "signed"},
		{ModeSigned | ModeEncrypted, "signed,encrypted"},
		{ModeSigned | Mode64Bit | ModeEncrypted, "signed,64bit,encrypted"},
	}
	for _, c := range cases {
		if got := c.mode.String(); got != c.want {
			t.Errorf("Mode(%d).String() = %q, want %q", c.mode, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []uint32{1, 2, 4, 0x10000} {
		if !isPowerOfTwo(n) {
			t.Errorf("isPowerOfTwo(%d) = false, want true", n)
		}
	}
	for _, n := range []uint32{0, 3, 6, 100} {
		if isPowerOfTwo(n) {
			t.Errorf("isPowerOfTwo(%d) = true, want false", n)
		}
	}
}
