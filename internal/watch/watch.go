// Package watch implements component C3 from spec.md: one EVFILT_VNODE
// registration tied to one open fd, tracking the set of dependency
// items that justify it staying open.
package watch

import (
	"fmt"

	"github.com/kqinotify/kqinotify/internal/deplist"
	"github.com/kqinotify/kqinotify/internal/kqworker"
)

// Kind distinguishes the user-requested parent watch from an
// auto-opened child watch, per spec.md §3.
type Kind int

const (
	// User is the explicitly requested parent watch of an i_watch.
	User Kind = iota
	// Dependency is an auto-opened watch on a directory child.
	Dependency
)

// Watch is one kqueue vnode registration. deps holds back-references
// to the dependency-list entries that justify keeping the watch open;
// emptying deps closes the watch, unless userRequested is set (the
// boolean encoding spec.md §9 offers in place of a DI_PARENT sentinel
// dependency).
type Watch struct {
	reg     kqworker.Registrar
	handler kqworker.EventHandler

	FD     int
	Inode  uint64
	Kind   Kind
	Fflags uint32

	userRequested bool
	deps          map[deplist.Handle]struct{}
}

// New registers fd with reg for the given fflags and returns a Watch
// holding no dependencies yet. Per spec.md §4.2 init: the caller is
// responsible for closing fd if registration fails. handler receives
// every fflag notification the kernel delivers for fd for the life of
// this watch; iwatch passes an fdHandler bound to the watch's inode.
func New(reg kqworker.Registrar, kind Kind, fd int, inode uint64, fflags uint32, handler kqworker.EventHandler) (*Watch, error) {
	if err := reg.Register(fd, fflags, handler); err != nil {
		return nil, fmt.Errorf("watch: register fd %d: %w", fd, err)
	}
	return &Watch{
		reg:     reg,
		handler: handler,
		FD:      fd,
		Inode:   inode,
		Kind:    kind,
		Fflags:  fflags,
		deps:    make(map[deplist.Handle]struct{}),
	}, nil
}

// MarkUserRequested sets the boolean that keeps this watch alive even
// with an empty dep set, per spec.md §9's DI_PARENT alternative.
func (w *Watch) MarkUserRequested() {
	w.userRequested = true
}

// AddDep appends h to the watch's dependency set. required is the
// fflag set the caller has computed is now needed for this watch's
// full dep set (spec.md §4.2 add_dep: "if the dep's flag contribution
// changes the required fflag set, re-registers"); AddDep re-registers
// only when required differs from the currently held Fflags.
func (w *Watch) AddDep(h deplist.Handle, required uint32) error {
	w.deps[h] = struct{}{}
	if required != w.Fflags {
		return w.Register(required)
	}
	return nil
}

// DelDep removes h from the dep set. If deps becomes empty and the
// watch was never marked user-requested, DelDep tears it down: it
// deregisters and closes the fd. The bool return reports whether the
// watch was torn down, so callers (iwatch) know to remove it from
// their watch-set.
func (w *Watch) DelDep(h deplist.Handle) (closed bool) {
	delete(w.deps, h)
	if w.DepsEmpty() {
		w.teardown()
		return true
	}
	return false
}

// ChgDep swaps the stored reference from hFrom to hTo without
// otherwise touching the watch, fd, or kqueue registration. Used by
// iwatch_move_subwatch (spec.md §4.3.4) for a same-inode rename.
func (w *Watch) ChgDep(hFrom, hTo deplist.Handle) {
	if _, ok := w.deps[hFrom]; !ok {
		return
	}
	delete(w.deps, hFrom)
	w.deps[hTo] = struct{}{}
}

// HasDep reports whether h is currently tracked by this watch.
func (w *Watch) HasDep(h deplist.Handle) bool {
	_, ok := w.deps[h]
	return ok
}

// DepsEmpty reports whether the close rule "len(deps) == 0 &&
// !userRequested" from spec.md §3 currently holds: it is false for a
// user-requested watch even when its dep set is empty. DelDep uses it
// to decide whether to tear the watch down.
func (w *Watch) DepsEmpty() bool {
	return len(w.deps) == 0 && !w.userRequested
}

// Register replaces the kqueue registration for this watch with
// fflags, per spec.md §4.2 register_event.
func (w *Watch) Register(fflags uint32) error {
	if err := w.reg.Register(w.FD, fflags, w.handler); err != nil {
		return fmt.Errorf("watch: re-register fd %d: %w", w.FD, err)
	}
	w.Fflags = fflags
	return nil
}

// teardown deregisters and closes the fd. It does not touch the
// owning watchset; callers (iwatch) remove the watch from their set
// based on DelDep's closed return.
func (w *Watch) teardown() {
	_ = w.reg.Deregister(w.FD)
	closeFD(w.FD)
}

// Close unconditionally tears down the watch regardless of deps or
// userRequested. iwatch_free (spec.md §4.3.6) uses this to release the
// parent watch once every dependency watch has already gone through
// DelDep.
func (w *Watch) Close() {
	w.teardown()
}
