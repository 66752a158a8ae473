//go:build darwin || freebsd

// Package skipfs implements component C8 from spec.md: a policy that
// suppresses subwatch creation on named filesystem types (procfs,
// devfs, and similar pseudo-filesystems where child fds are either
// meaningless or expensive to hold open).
package skipfs

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// Policy holds the configured set of filesystem type names for which
// skip_subfiles is set at i_watch init, per spec.md §4.6.
type Policy struct {
	types map[string]struct{}
}

// New builds a Policy from a list of filesystem type names, e.g.
// "procfs", "devfs", "fdescfs" (spec.md §6 config table examples).
func New(fsTypes []string) *Policy {
	m := make(map[string]struct{}, len(fsTypes))
	for _, t := range fsTypes {
		m[t] = struct{}{}
	}
	return &Policy{types: m}
}

// ShouldSkip queries fstatfs on fd and reports whether its filesystem
// type matches the configured skip list.
func (p *Policy) ShouldSkip(fd int) bool {
	if len(p.types) == 0 {
		return false
	}
	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		return false
	}
	_, skip := p.types[fsTypeName(&st)]
	return skip
}

func fsTypeName(st *unix.Statfs_t) string {
	b := make([]byte, 0, len(st.Fstypename))
	for _, c := range st.Fstypename {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(bytes.TrimRight(b, "\x00"))
}
