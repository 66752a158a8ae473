//go:build darwin || freebsd

package depitem

import "golang.org/x/sys/unix"

// TypeFromStatMode converts a raw stat mode word into a FileType hint,
// shared by internal/dirscan and internal/iwatch so both classify a
// freshly fstat'd entry the same way.
func TypeFromStatMode(mode uint16) FileType {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return Regular
	case unix.S_IFDIR:
		return Directory
	case unix.S_IFLNK:
		return Symlink
	case unix.S_IFIFO:
		return Fifo
	case unix.S_IFSOCK:
		return Socket
	case unix.S_IFBLK:
		return BlockDevice
	case unix.S_IFCHR:
		return CharDevice
	default:
		return Unknown
	}
}
