//go:build darwin || freebsd

// Package iwatch implements component C6 from spec.md: one
// user-visible inotify watch (i_watch), holding a parent vnode watch
// plus zero-or-more dependency watches on directory children, and
// synthesizing the inotify events kqueue does not deliver natively.
package iwatch

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/kqinotify/kqinotify/internal/depitem"
	"github.com/kqinotify/kqinotify/internal/deplist"
	"github.com/kqinotify/kqinotify/internal/dirscan"
	"github.com/kqinotify/kqinotify/internal/kflags"
	"github.com/kqinotify/kqinotify/internal/klog"
	"github.com/kqinotify/kqinotify/internal/kmetrics"
	"github.com/kqinotify/kqinotify/internal/kqworker"
	"github.com/kqinotify/kqinotify/internal/skipfs"
	"github.com/kqinotify/kqinotify/internal/watch"
	"github.com/kqinotify/kqinotify/internal/watchset"
)

// Sink is where synthesized events go, and where deferred work (the
// trailing edge of a debounced rescan) gets funneled back onto the
// worker's drain-loop goroutine. internal/kqworker.Worker satisfies
// this with its Emit and Submit methods; the public notify package
// passes a Worker (or a fake, in tests) here.
type Sink interface {
	Emit(kqworker.RawEvent)
	Submit(fn func())
}

// Config is the subset of the public config surface (spec.md §6) that
// governs one i_watch's behavior.
type Config struct {
	FollowSymlinks   bool
	MaskAddSemantics bool
	RescanDebounce   time.Duration
	RescanBurst      int
}

// Watch is one i_watch: one user-visible watch descriptor, a parent
// vnode watch, and the dependency watches opened for its directory
// children.
type Watch struct {
	reg      kqworker.Registrar
	sink     Sink
	reporter klog.Reporter
	policy   *skipfs.Policy
	cfg      Config

	WD    int
	FD    int
	Inode uint64
	Dev   uint64
	Flags kflags.Mask

	parentType   depitem.FileType
	skipSubfiles bool

	Watches *watchset.Set
	Deps    *deplist.List

	closed atomic.Bool

	limiter       *rate.Limiter
	pendingRescan *time.Timer
	cookie        uint32
}

type fdHandler struct {
	iw    *Watch
	inode uint64
}

func (h *fdHandler) HandleKevent(fflags uint32) {
	h.iw.onEvent(h.inode, uint32(fflags))
}

// Init implements iwatch_init (spec.md §4.3.1): fstat the target,
// snapshot its directory if it is one, register the parent watch, and
// open a subwatch for every entry in the snapshot.
func Init(reg kqworker.Registrar, sink Sink, reporter klog.Reporter, policy *skipfs.Policy, cfg Config, wd, fd int, mask kflags.Mask) (*Watch, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("iwatch: fstat target: %w", err)
	}

	if reporter == nil {
		reporter = klog.Nop{}
	}
	if policy == nil {
		policy = skipfs.New(nil)
	}

	iw := &Watch{
		reg:        reg,
		sink:       sink,
		reporter:   reporter,
		policy:     policy,
		cfg:        cfg,
		WD:         wd,
		FD:         fd,
		Inode:      st.Ino,
		Dev:        uint64(st.Dev),
		Flags:      mask,
		parentType: depitem.TypeFromStatMode(st.Mode),
		Watches:    watchset.New(),
		Deps:       deplist.New(),
	}
	if cfg.RescanDebounce > 0 {
		burst := cfg.RescanBurst
		if burst < 1 {
			burst = 1
		}
		iw.limiter = rate.NewLimiter(rate.Every(cfg.RescanDebounce), burst)
	}

	iw.skipSubfiles = policy.ShouldSkip(fd)

	if iw.parentType == depitem.Directory {
		list, err := dirscan.Scan(fd)
		if err != nil {
			return nil, fmt.Errorf("iwatch: initial scan: %w", err)
		}
		iw.Deps = list
	}

	parentFflags := kflags.InotifyToKqueue(iw.Flags, iw.parentType, true)
	parentWatch, err := watch.New(reg, watch.User, fd, iw.Inode, parentFflags, &fdHandler{iw: iw, inode: iw.Inode})
	if err != nil {
		return nil, fmt.Errorf("iwatch: register parent: %w", err)
	}
	parentWatch.MarkUserRequested()
	if err := iw.Watches.Insert(parentWatch); err != nil {
		panic(err)
	}
	kmetrics.WatchesOpen.Inc()

	if iw.parentType == depitem.Directory {
		iw.Deps.ForEach(func(h deplist.Handle, it *depitem.Item) {
			if _, err := iw.AddSubwatch(it, h); err != nil {
				iw.reporter.Soft("add_subwatch failed during init", klog.Fields{Path: it.Name, Inode: it.Inode, Err: err})
			}
		})
	}

	return iw, nil
}

// Close implements iwatch_free (spec.md §4.3.6): drop every dependency
// subwatch, then release the parent watch itself.
func (iw *Watch) Close() {
	iw.closed.Store(true)
	if iw.pendingRescan != nil {
		iw.pendingRescan.Stop()
	}

	iw.Deps.ForEach(func(h deplist.Handle, it *depitem.Item) {
		iw.DelSubwatch(it, h)
	})

	if parentWatch := iw.Watches.Find(iw.Inode); parentWatch != nil {
		parentWatch.Close()
		iw.Watches.Delete(iw.Inode)
		kmetrics.WatchesOpen.Dec()
	}
}

// AddSubwatch implements iwatch_add_subwatch (spec.md §4.3.2). The
// 9-step decision order is load-bearing and reproduced here in order.
//
// Open question decision (spec.md §9 "Race in step 3"): adopting an
// existing watch (steps 3 and 7) never re-registers its fflags — see
// adopt — matching the original C's behavior, so an adopted watch's
// fflags may lag the new dep's requirements until the next
// UpdateFlags call.
func (iw *Watch) AddSubwatch(it *depitem.Item, h deplist.Handle) (*watch.Watch, error) {
	// 1. is_closed check.
	if iw.closed.Load() {
		return nil, nil
	}

	// 2. skip_subfiles short-circuits straight to the lstat fallback.
	if iw.skipSubfiles {
		iw.lstatFallback(it)
		return nil, nil
	}

	// 3. Adopt an existing watch on the same inode (hardlink or a
	// rename that collides with something already watched).
	if existing := iw.Watches.Find(it.Inode); existing != nil {
		return iw.adopt(existing, h)
	}

	// 4. Known type + translator says "nothing to watch" -> elide.
	if it.Type != depitem.Unknown {
		if kflags.InotifyToKqueue(iw.Flags, it.Type, false) == 0 {
			return nil, nil
		}
	}

	// 5. Open without following symlinks.
	fd, err := unix.Openat(iw.FD, it.Name, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0)
	if err != nil {
		iw.reporter.Soft("open subwatch failed", klog.Fields{Syscall: "openat", Path: it.Name, Inode: it.Inode, Err: err})
		iw.lstatFallback(it)
		return nil, nil
	}

	// 6. fstat the opened fd.
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		iw.reporter.Soft("fstat subwatch failed", klog.Fields{Syscall: "fstat", Path: it.Name, Inode: it.Inode, Err: err})
		iw.lstatFallback(it)
		return nil, nil
	}

	// 7. Reconcile the inode observed at open time with the one
	// recorded at snapshot time.
	resolvedInode := st.Ino
	switch {
	case st.Ino == it.Inode:
		// accept as-is.
	case uint64(st.Dev) != iw.Dev:
		// Mountpoint: keep the underlying directory's inode for
		// bookkeeping so the watch survives an unmount of whatever is
		// mounted over this entry.
		resolvedInode = it.Inode
	default:
		// Replacement race: the dep now names a different inode.
		it.Inode = st.Ino
		if existing := iw.Watches.Find(st.Ino); existing != nil {
			unix.Close(fd)
			return iw.adopt(existing, h)
		}
		resolvedInode = st.Ino
	}
	it.Type = depitem.TypeFromStatMode(st.Mode)

	required := kflags.InotifyToKqueue(iw.Flags, it.Type, false)
	w, err := watch.New(iw.reg, watch.Dependency, fd, resolvedInode, required, &fdHandler{iw: iw, inode: resolvedInode})
	if err != nil {
		unix.Close(fd)
		iw.reporter.Soft("register subwatch failed", klog.Fields{Syscall: "kevent", Path: it.Name, Inode: resolvedInode, Err: err})
		iw.lstatFallback(it)
		return nil, nil
	}
	if err := iw.Watches.Insert(w); err != nil {
		// I4: no two watches in one i_watch share an inode. The Find
		// check above should make this unreachable; treat it as the
		// bug it would be, not a runtime condition to recover from.
		panic(err)
	}
	kmetrics.SubwatchesOpen.Inc()

	return iw.hold(w, it, h)
}

// hold is step 8: append the dep to the freshly opened watch, closing
// it right back down if the translator says the combined mask needs
// nothing from it.
func (iw *Watch) hold(w *watch.Watch, it *depitem.Item, h deplist.Handle) (*watch.Watch, error) {
	required := kflags.InotifyToKqueue(iw.Flags, it.Type, false)
	if err := w.AddDep(h, required); err != nil {
		return nil, fmt.Errorf("iwatch: hold dep on inode %d: %w", w.Inode, err)
	}
	if required == 0 {
		if w.DelDep(h) {
			iw.Watches.Delete(w.Inode)
			kmetrics.SubwatchesOpen.Dec()
		}
		return nil, nil
	}
	return w, nil
}

// adopt is steps 3 and 7's collision path: attach a dep to a watch
// that already exists on this inode (a hardlink, or a rename that
// landed on something already watched). required is pinned to w's own
// Fflags so AddDep's re-registration check (required != w.Fflags)
// never fires, guaranteeing adopt never lowers an already-open
// watch's fflags out from under whichever dep first opened it.
func (iw *Watch) adopt(w *watch.Watch, h deplist.Handle) (*watch.Watch, error) {
	if err := w.AddDep(h, w.Fflags); err != nil {
		return nil, fmt.Errorf("iwatch: adopt dep on inode %d: %w", w.Inode, err)
	}
	return w, nil
}

// lstatFallback is step 9: fill in an UNKNOWN type via a no-follow
// stat so a future rescan or UpdateFlags can make a real decision.
func (iw *Watch) lstatFallback(it *depitem.Item) {
	if it.Type != depitem.Unknown {
		return
	}
	var st unix.Stat_t
	if err := unix.Fstatat(iw.FD, it.Name, &st, unix.AT_SYMLINK_NOFOLLOW); err == nil {
		it.Type = depitem.TypeFromStatMode(st.Mode)
	}
}

// DelSubwatch implements iwatch_del_subwatch (spec.md §4.3.3).
func (iw *Watch) DelSubwatch(it *depitem.Item, h deplist.Handle) {
	w := iw.Watches.Find(it.Inode)
	if w == nil {
		return
	}
	if w.DelDep(h) {
		iw.Watches.Delete(it.Inode)
		kmetrics.SubwatchesOpen.Dec()
	}
}

// MoveSubwatch implements iwatch_move_subwatch (spec.md §4.3.4).
// Precondition: from.Inode == to.Inode.
func (iw *Watch) MoveSubwatch(from, to *depitem.Item, hFrom, hTo deplist.Handle) {
	if from.Inode != to.Inode {
		panic("iwatch: MoveSubwatch called with differing inodes")
	}
	w := iw.Watches.Find(from.Inode)
	if w == nil {
		return
	}
	w.ChgDep(hFrom, hTo)
}

// UpdateFlags implements iwatch_update_flags (spec.md §4.3.5).
func (iw *Watch) UpdateFlags(mask kflags.Mask, add bool) {
	if add && iw.cfg.MaskAddSemantics {
		iw.Flags |= mask
	} else {
		iw.Flags = mask
	}

	parentFflags := kflags.InotifyToKqueue(iw.Flags, iw.parentType, true)
	if parentWatch := iw.Watches.Find(iw.Inode); parentWatch != nil {
		_ = parentWatch.Register(parentFflags)
	}

	iw.Deps.ForEach(func(h deplist.Handle, it *depitem.Item) {
		w := iw.Watches.Find(it.Inode)
		if w == nil || !w.HasDep(h) {
			if _, err := iw.AddSubwatch(it, h); err != nil {
				iw.reporter.Soft("add_subwatch failed during update_flags", klog.Fields{Path: it.Name, Inode: it.Inode, Err: err})
			}
			return
		}
		required := kflags.InotifyToKqueue(iw.Flags, it.Type, false)
		if required == 0 {
			iw.DelSubwatch(it, h)
			return
		}
		_ = w.Register(required)
	})
}

func (iw *Watch) nextCookie() uint32 {
	iw.cookie++
	return iw.cookie
}
