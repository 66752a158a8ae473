// Package watchset implements component C4 from spec.md: an
// inode-keyed index of watch.Watch values scoped to one i_watch.
package watchset

import (
	"fmt"

	"github.com/kqinotify/kqinotify/internal/watch"
)

// Set maps inode number to the watch covering it. spec.md §4.4
// suggests a balanced tree; SPEC_FULL.md's Open Questions section
// records the decision to use a plain map instead, since nothing in
// this package needs ordered iteration (only deplist.List does).
type Set struct {
	byInode map[uint64]*watch.Watch
}

// New returns an empty Set.
func New() *Set {
	return &Set{byInode: make(map[uint64]*watch.Watch)}
}

// Find returns the watch registered for ino, or nil if none exists.
func (s *Set) Find(ino uint64) *watch.Watch {
	return s.byInode[ino]
}

// Insert adds w keyed by w.Inode. Per spec.md §4.4, "collisions of
// inode within one i_watch are impossible by invariant" — Insert
// fails fast if one occurs, since that means a caller violated I4.
func (s *Set) Insert(w *watch.Watch) error {
	if _, exists := s.byInode[w.Inode]; exists {
		return fmt.Errorf("watchset: duplicate inode %d", w.Inode)
	}
	s.byInode[w.Inode] = w
	return nil
}

// Delete removes the watch for ino, if any.
func (s *Set) Delete(ino uint64) {
	delete(s.byInode, ino)
}

// Len returns the number of watches currently held.
func (s *Set) Len() int {
	return len(s.byInode)
}

// ForEach calls fn for every watch in the set. Iteration order is
// unspecified, matching the map-backed implementation.
func (s *Set) ForEach(fn func(ino uint64, w *watch.Watch)) {
	for ino, w := range s.byInode {
		fn(ino, w)
	}
}
