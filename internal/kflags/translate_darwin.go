//go:build darwin

package kflags

// Darwin's EVFILT_VNODE stops at NOTE_FUNLOCK; it has no NOTE_OPEN,
// NOTE_CLOSE, or NOTE_CLOSE_WRITE the way FreeBSD's does (see
// translate_freebsd.go), so IN_OPEN/IN_CLOSE_WRITE/IN_CLOSE_NOWRITE are
// unobservable on this platform and simply never fire.
func openCloseKqueueFlags(mask Mask) uint32   { return 0 }
func openCloseInotifyHint(fflags uint32) Mask { return 0 }
