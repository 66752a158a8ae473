//go:build !darwin && !freebsd

package kflags

import "github.com/kqinotify/kqinotify/internal/depitem"

// InotifyToKqueue on non-kqueue platforms always returns 0: there is no
// EVFILT_VNODE here, so no fflag set can ever be registered. Callers
// (internal/iwatch) already treat 0 as "do not open a watch", so this
// degrades to "never open subwatches" rather than panicking, keeping the
// package importable (if not usable) on every GOOS.
func InotifyToKqueue(mask Mask, ft depitem.FileType, isParent bool) uint32 {
	return 0
}

// KqueueToInotifyHint has nothing to translate on this platform.
func KqueueToInotifyHint(fflags uint32, isDir bool) Mask {
	return 0
}
