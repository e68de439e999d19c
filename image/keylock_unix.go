//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package image

import "golang.org/x/sys/unix"

// lockKeyMaterial best-effort mlocks the derived XTS key bytes so the
// page backing them is less likely to be written to swap. Best-effort:
// this requires privileges the calling process may not have (e.g. no
// CAP_IPC_LOCK, or an mlock page-count limit), and a failure here must
// not block opening an encrypted image, so errors are discarded.
func lockKeyMaterial(key []byte) {
	_ = unix.Mlock(key)
}
