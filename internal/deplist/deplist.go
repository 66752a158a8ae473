// Package deplist holds one directory-listing snapshot: the dependency
// list a spec.md i_watch keeps between rescans, plus the diff used to
// synthesize CREATE/DELETE/rename events from two snapshots.
package deplist

import (
	"container/list"
	"sort"

	"github.com/twmb/murmur3"

	"github.com/kqinotify/kqinotify/internal/depitem"
)

// Handle is a stable reference to one Item held by a List. watch.Watch
// stores Handles, not pointers, in its dependency set (spec.md §9's
// arena-index alternative to raw back-pointers).
type Handle struct {
	e *list.Element
}

// Valid reports whether h is a non-zero Handle; a zero Handle is never
// valid. Valid does not detect a handle whose item has since been
// removed from its List; List.Item returns nil for such a handle.
func (h Handle) Valid() bool { return h.e != nil }

// List is a doubly linked collection of *depitem.Item, kept in ascending
// alphabetical order by Name so Items, ForEach and Compute's output are
// stable and reproducible. A rescan in internal/iwatch emits its events
// grouped by kind (deletes, replacements, renames, creates), each group
// in alphabetical order; the groups are not merged into one
// alphabetical sequence.
type List struct {
	l     *list.List
	byName map[string]*list.Element
}

// New returns an empty dependency list.
func New() *List {
	return &List{l: list.New(), byName: make(map[string]*list.Element)}
}

// Len returns the number of items currently in the list.
func (dl *List) Len() int { return dl.l.Len() }

// Append inserts it in its alphabetically-sorted position and returns a
// Handle to it. Append panics if an item with the same Name already
// exists — Name uniqueness within one List is an invariant of spec.md §3,
// not a condition callers are expected to recover from.
func (dl *List) Append(it *depitem.Item) Handle {
	if _, exists := dl.byName[it.Name]; exists {
		panic("deplist: duplicate name " + it.Name)
	}

	var mark *list.Element
	for e := dl.l.Front(); e != nil; e = e.Next() {
		if e.Value.(*depitem.Item).Name > it.Name {
			mark = e
			break
		}
	}

	var e *list.Element
	if mark == nil {
		e = dl.l.PushBack(it)
	} else {
		e = dl.l.InsertBefore(it, mark)
	}
	dl.byName[it.Name] = e

	return Handle{e: e}
}

// Remove deletes the item h refers to. Removing an invalid or already
// removed handle is a no-op.
func (dl *List) Remove(h Handle) {
	if h.e == nil {
		return
	}
	it := h.e.Value.(*depitem.Item)
	if cur, ok := dl.byName[it.Name]; !ok || cur != h.e {
		return
	}
	delete(dl.byName, it.Name)
	dl.l.Remove(h.e)
}

// Item dereferences a Handle. It returns nil if the handle no longer
// refers to a live item.
func (dl *List) Item(h Handle) *depitem.Item {
	if h.e == nil {
		return nil
	}
	it := h.e.Value.(*depitem.Item)
	if cur, ok := dl.byName[it.Name]; !ok || cur != h.e {
		return nil
	}
	return it
}

// FindByName returns the handle for name, or the zero Handle if absent.
func (dl *List) FindByName(name string) Handle {
	if e, ok := dl.byName[name]; ok {
		return Handle{e: e}
	}
	return Handle{}
}

// ForEach walks the list in alphabetical order, calling fn with each
// item's handle. fn must not mutate dl.
func (dl *List) ForEach(fn func(h Handle, it *depitem.Item)) {
	for e := dl.l.Front(); e != nil; e = e.Next() {
		fn(Handle{e: e}, e.Value.(*depitem.Item))
	}
}

// Items returns a snapshot slice of the list's items in alphabetical
// order, for callers that need a stable view to range over while also
// mutating dl (e.g. reconciliation loops that add/remove subwatches).
func (dl *List) Items() []*depitem.Item {
	out := make([]*depitem.Item, 0, dl.l.Len())
	for e := dl.l.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*depitem.Item))
	}
	return out
}

// Fingerprint returns a murmur3 hash of the list's current (name, inode)
// pairs in alphabetical order. It has no bearing on any spec.md invariant;
// internal/iwatch compares the stored and the fresh snapshot's
// fingerprints on each rescan and, when they match, logs "no change" at
// debug level and skips the diff.
func (dl *List) Fingerprint() uint64 {
	h := murmur3.New64()
	for e := dl.l.Front(); e != nil; e = e.Next() {
		it := e.Value.(*depitem.Item)
		h.Write([]byte(it.Name))
		var buf [8]byte
		putUint64(buf[:], it.Inode)
		h.Write(buf[:])
	}
	return h.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Diff compares two directory-listing snapshots taken by internal/dirscan
// and classifies every changed name into Added, Removed, a Renamed pair
// (same inode, old name in oldList, new name in newList), or a Replaced
// pair (same name, different inode) — the input to
// spec.md §4.3.5's rescan-reconciliation loop.
type Diff struct {
	Added    []*depitem.Item
	Removed  []*depitem.Item
	Renamed  []RenamePair
	Replaced []ReplacePair
}

// RenamePair is one inode whose name changed between two scans.
type RenamePair struct {
	From *depitem.Item
	To   *depitem.Item
}

// ReplacePair is one name whose inode changed between two scans: the
// entry was removed and a different object created under the same
// name before the next scan observed it (spec.md §8 scenario 3,
// "replace-in-place race").
type ReplacePair struct {
	Old *depitem.Item
	New *depitem.Item
}

// Compute diffs old against new, both assumed to already be in
// alphabetical order (as any *List's Items() is). Names present in both
// with the same inode are unchanged and omitted from the result.
func Compute(old, new *List) Diff {
	oldItems := old.Items()
	newItems := new.Items()

	oldByName := make(map[string]*depitem.Item, len(oldItems))
	for _, it := range oldItems {
		oldByName[it.Name] = it
	}
	newByName := make(map[string]*depitem.Item, len(newItems))
	for _, it := range newItems {
		newByName[it.Name] = it
	}

	var removedNames, addedNames []string
	for name := range oldByName {
		if _, ok := newByName[name]; !ok {
			removedNames = append(removedNames, name)
		}
	}
	for name := range newByName {
		if _, ok := oldByName[name]; !ok {
			addedNames = append(addedNames, name)
		}
	}
	sort.Strings(removedNames)
	sort.Strings(addedNames)

	// Pair up removed/added names that share an inode: those are renames
	// within this one directory scan (spec.md §1's cookie-pairing scope).
	var diff Diff
	consumedAdded := make(map[string]bool, len(addedNames))
	for _, name := range removedNames {
		it := oldByName[name]
		matched := false
		for _, addedName := range addedNames {
			if consumedAdded[addedName] {
				continue
			}
			cand := newByName[addedName]
			if cand.Inode == it.Inode {
				diff.Renamed = append(diff.Renamed, RenamePair{From: it, To: cand})
				consumedAdded[addedName] = true
				matched = true
				break
			}
		}
		if !matched {
			diff.Removed = append(diff.Removed, it)
		}
	}
	for _, name := range addedNames {
		if !consumedAdded[name] {
			diff.Added = append(diff.Added, newByName[name])
		}
	}

	// Names present in both snapshots are normally unchanged, but a
	// different inode under the same name means the object was
	// replaced between the two scans.
	var sameNames []string
	for name := range oldByName {
		if _, ok := newByName[name]; ok {
			sameNames = append(sameNames, name)
		}
	}
	sort.Strings(sameNames)
	for _, name := range sameNames {
		o, n := oldByName[name], newByName[name]
		if o.Inode != n.Inode {
			diff.Replaced = append(diff.Replaced, ReplacePair{Old: o, New: n})
		}
	}

	return diff
}
