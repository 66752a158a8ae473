//go:build freebsd

package kflags

import "golang.org/x/sys/unix"

// openCloseKqueueFlags maps IN_OPEN/IN_CLOSE_WRITE/IN_CLOSE_NOWRITE to
// the FreeBSD-only EVFILT_VNODE fflags that can observe them
// (NOTE_OPEN, NOTE_CLOSE, NOTE_CLOSE_WRITE). Darwin's EVFILT_VNODE has
// no equivalent notes; see translate_darwin.go.
func openCloseKqueueFlags(mask Mask) uint32 {
	var fflags uint32
	if mask.Has(InOpen) {
		fflags |= unix.NOTE_OPEN
	}
	if mask.Has(InCloseWrite) {
		fflags |= unix.NOTE_CLOSE_WRITE
	}
	if mask.Has(InCloseNoWrite) {
		fflags |= unix.NOTE_CLOSE
	}
	return fflags
}

// openCloseInotifyHint is the reverse of openCloseKqueueFlags.
func openCloseInotifyHint(fflags uint32) Mask {
	var m Mask
	if fflags&unix.NOTE_OPEN != 0 {
		m |= InOpen
	}
	if fflags&unix.NOTE_CLOSE_WRITE != 0 {
		m |= InCloseWrite
	}
	if fflags&unix.NOTE_CLOSE != 0 {
		m |= InCloseNoWrite
	}
	return m
}
