//go:build darwin || freebsd

package kflags

import (
	"golang.org/x/sys/unix"

	"github.com/kqinotify/kqinotify/internal/depitem"
)

// InotifyToKqueue implements spec.md §4.1: the minimal set of EVFILT_VNODE
// fflags that together observe every event in mask visible on an object of
// type ft. isParent distinguishes the USER watch (kind watch.User) from a
// DEPENDENCY subwatch.
//
// The result is monotonic in mask (spec.md I6): every branch below only
// ever ORs a bit in based on a bit already present in mask, never clears
// one — adding requested events can only add fflags, never remove them.
//
// A result of 0 is a sentinel, not a degenerate case: it tells the caller
// no kqueue registration is needed for this object at all (spec.md §4.1,
// §8 scenario 6 — a plain IN_CREATE watch on a directory needs no fflags
// on its regular-file children until the mask grows to include something
// individual files can report, e.g. IN_MODIFY).
//
// IN_OPEN/IN_CLOSE_WRITE/IN_CLOSE_NOWRITE are only observable through
// NOTE_OPEN/NOTE_CLOSE/NOTE_CLOSE_WRITE, which exist only on FreeBSD's
// EVFILT_VNODE; openCloseKqueueFlags (translate_freebsd.go/
// translate_darwin.go) isolates that platform split.
func InotifyToKqueue(mask Mask, ft depitem.FileType, isParent bool) uint32 {
	var fflags uint32

	isDir := ft == depitem.Directory

	// Only a directory's own (parent) watch can observe child
	// creation/removal/rename, and only via NOTE_WRITE — kqueue has no
	// filter that fires directly on "a child appeared."
	dirChildEvents := mask.Any(InCreate | InDelete | InMovedFrom | InMovedTo)
	if isDir && isParent && dirChildEvents {
		fflags |= unix.NOTE_WRITE
		// The rescan behind a CREATE/DELETE/MOVED_* watch is only useful
		// while the directory itself still exists at this path.
		fflags |= unix.NOTE_DELETE | unix.NOTE_RENAME
	}

	if mask.Has(InModify) {
		fflags |= unix.NOTE_WRITE
		fflags |= unix.NOTE_EXTEND
	}
	if mask.Any(InAttrib) {
		fflags |= unix.NOTE_ATTRIB
		fflags |= unix.NOTE_LINK
	}
	if mask.Has(InDeleteSelf) {
		fflags |= unix.NOTE_DELETE
	}
	if mask.Has(InMoveSelf) {
		fflags |= unix.NOTE_RENAME
	}

	fflags |= openCloseKqueueFlags(mask)

	return fflags
}

// KqueueToInotifyHint returns the subset of an observed fflag set that
// maps back to inotify bits which do not require a directory rescan to
// synthesize (open/close/attrib/write/self-delete/self-rename). CREATE,
// DELETE, and MOVED_* are never produced here — spec.md places their
// synthesis in the worker, driven by a deplist.Diff, not by a single
// fflag-to-mask lookup (a NOTE_WRITE on a directory means "something
// changed", not which of CREATE/DELETE/MOVED_FROM/MOVED_TO happened).
func KqueueToInotifyHint(fflags uint32, isDir bool) Mask {
	var m Mask
	if fflags&unix.NOTE_WRITE != 0 && !isDir {
		m |= InModify
	}
	if fflags&unix.NOTE_EXTEND != 0 && !isDir {
		m |= InModify
	}
	if fflags&(unix.NOTE_ATTRIB|unix.NOTE_LINK) != 0 {
		m |= InAttrib
	}
	if fflags&unix.NOTE_DELETE != 0 {
		m |= InDeleteSelf
	}
	if fflags&unix.NOTE_RENAME != 0 {
		m |= InMoveSelf
	}

	m |= openCloseInotifyHint(fflags)

	return m
}
