// Package kflags implements the flag translator (spec.md §4.1, component
// C5): a pure, bidirectional mapping between inotify event masks and the
// EVFILT_VNODE fflags that can deliver them.
//
// The inotify mask bits are this library's own constants, not
// golang.org/x/sys/unix's — unix.IN_* only exists on GOOS=linux, since
// inotify is a Linux-only facility. The values below match Linux's stable
// <linux/inotify.h> ABI exactly, because client code (and any wire format
// built on top of this library) expects those numeric values regardless of
// which kernel is actually running underneath.
package kflags

// Mask is an inotify event/control mask, using the same bit layout as
// Linux's <linux/inotify.h>.
type Mask uint32

const (
	InAccess      Mask = 0x00000001
	InModify      Mask = 0x00000002
	InAttrib      Mask = 0x00000004
	InCloseWrite  Mask = 0x00000008
	InCloseNoWrite Mask = 0x00000010
	InOpen        Mask = 0x00000020
	InMovedFrom   Mask = 0x00000040
	InMovedTo     Mask = 0x00000080
	InCreate      Mask = 0x00000100
	InDelete      Mask = 0x00000200
	InDeleteSelf  Mask = 0x00000400
	InMoveSelf    Mask = 0x00000800

	InUnmount    Mask = 0x00002000
	InQOverflow  Mask = 0x00004000
	InIgnored    Mask = 0x00008000

	InOnlyDir     Mask = 0x01000000
	InDontFollow  Mask = 0x02000000
	InExclUnlink  Mask = 0x04000000
	InMaskAdd     Mask = 0x20000000
	InIsDir       Mask = 0x40000000
	InOneshot     Mask = 0x80000000

	InClose = InCloseWrite | InCloseNoWrite
	InMove  = InMovedFrom | InMovedTo

	InAllEvents = InAccess | InModify | InAttrib | InClose | InOpen |
		InMove | InCreate | InDelete | InDeleteSelf | InMoveSelf
)

// Has reports whether every bit set in want is also set in m.
func (m Mask) Has(want Mask) bool { return m&want == want }

// Any reports whether m and want share any bit.
func (m Mask) Any(want Mask) bool { return m&want != 0 }
