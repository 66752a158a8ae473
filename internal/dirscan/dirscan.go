//go:build darwin || freebsd

// Package dirscan implements component C9 from spec.md: snapshot a
// directory's entries into a dependency list.
package dirscan

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/kqinotify/kqinotify/internal/deplist"
	"github.com/kqinotify/kqinotify/internal/depitem"
)

// Scan reads every entry of the directory open on dirFD (excluding
// "." and "..") and returns a fresh deplist.List, one item per entry,
// with name, inode, and type hint taken from a no-follow fstatat of
// the entry; an entry whose fstatat fails is left out. Per spec.md
// §4.5, scanner errors propagate as a nil list.
func Scan(dirFD int) (*deplist.List, error) {
	// Read entries off a dup'd fd: os.File.Close on the wrapper must
	// not close the caller's dirFD, which the owning watch keeps open
	// for its own kqueue registration.
	dup, err := unix.Dup(dirFD)
	if err != nil {
		return nil, fmt.Errorf("dirscan: dup dirFD %d: %w", dirFD, err)
	}
	f := os.NewFile(uintptr(dup), "dirscan")
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("dirscan: readdirnames: %w", err)
	}

	list := deplist.New()
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		it, err := statEntry(dirFD, name)
		if err != nil {
			// A single entry disappearing mid-scan (removed between
			// readdirnames and the stat call) is not a scan failure;
			// spec.md §4.3.2 step 9 already treats an UNKNOWN type as
			// legitimate, so skip an entry that vanished rather than
			// abort the whole scan for one race.
			continue
		}
		list.Append(it)
	}
	return list, nil
}

func statEntry(dirFD int, name string) (*depitem.Item, error) {
	var st unix.Stat_t
	if err := unix.Fstatat(dirFD, name, &st, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, err
	}
	return &depitem.Item{
		Name:  name,
		Inode: st.Ino,
		Type:  depitem.TypeFromStatMode(st.Mode),
	}, nil
}
