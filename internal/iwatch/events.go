//go:build darwin || freebsd

package iwatch

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/kqinotify/kqinotify/internal/depitem"
	"github.com/kqinotify/kqinotify/internal/deplist"
	"github.com/kqinotify/kqinotify/internal/dirscan"
	"github.com/kqinotify/kqinotify/internal/kflags"
	"github.com/kqinotify/kqinotify/internal/klog"
	"github.com/kqinotify/kqinotify/internal/kmetrics"
	"github.com/kqinotify/kqinotify/internal/kqworker"
)

// selfHintBits is the order events derived from KqueueToInotifyHint
// are emitted in — arbitrary but fixed, so tests get a stable order.
var selfHintBits = []kflags.Mask{
	kflags.InOpen,
	kflags.InModify,
	kflags.InAttrib,
	kflags.InCloseWrite,
	kflags.InCloseNoWrite,
	kflags.InMoveSelf,
	kflags.InDeleteSelf,
}

// onEvent is the fdHandler entry point: inode identifies which watch
// (the parent's own inode, or a dependency's) the kernel fired fflags
// for.
func (iw *Watch) onEvent(inode uint64, fflags uint32) {
	if inode == iw.Inode {
		iw.onParentEvent(fflags)
		return
	}
	iw.onChildEvent(inode, fflags)
}

// onParentEvent handles fflags observed on the watched target itself:
// self-referential events (ATTRIB, MOVE_SELF, DELETE_SELF, ...) and,
// for directories, NOTE_WRITE triggering a rescan of the directory's
// contents.
func (iw *Watch) onParentEvent(fflags uint32) {
	isDir := iw.parentType == depitem.Directory

	if isDir && fflags&unix.NOTE_WRITE != 0 {
		iw.maybeRescan()
	}

	hint := kflags.KqueueToInotifyHint(fflags, isDir) & iw.Flags
	for _, bit := range selfHintBits {
		if hint.Has(bit) {
			iw.emit(bit, isDir, "", 0)
		}
	}
}

// onChildEvent handles fflags observed on a dependency watch: it looks
// up every current dep name sharing that inode (hardlinks) and emits
// one event per name.
func (iw *Watch) onChildEvent(inode uint64, fflags uint32) {
	w := iw.Watches.Find(inode)
	if w == nil {
		return
	}

	var names []string
	ft := depitem.Unknown
	iw.Deps.ForEach(func(_ deplist.Handle, it *depitem.Item) {
		if it.Inode == inode {
			names = append(names, it.Name)
			ft = it.Type
		}
	})
	if len(names) == 0 {
		return
	}

	isDir := ft == depitem.Directory
	hint := kflags.KqueueToInotifyHint(fflags, isDir) & iw.Flags
	for _, bit := range selfHintBits {
		if !hint.Has(bit) {
			continue
		}
		for _, name := range names {
			iw.emit(bit, isDir, name, 0)
		}
	}
}

// maybeRescan debounces bursts of NOTE_WRITE on a busy directory
// (SPEC_FULL.md §5's supplemented rescan coalescing) before running
// the real reconciliation pass. The limiter gives an immediate,
// leading-edge rescan for the first write of a burst; every write
// that arrives before the debounce window expires re-arms a trailing
// timer instead of being dropped, so the final state of a burst is
// always reconciled even if NOTE_WRITE stops arriving before the
// limiter's next token is available.
func (iw *Watch) maybeRescan() {
	if iw.limiter == nil || iw.limiter.Allow() {
		iw.rescan()
		return
	}
	iw.armTrailingRescan()
}

// armTrailingRescan schedules (or reschedules) a rescan for one
// debounce interval from now. The timer callback runs on its own
// goroutine, so it hands off to runTrailingRescan via Sink.Submit
// instead of calling rescan directly, keeping every mutation of this
// watch's state on the worker's drain-loop goroutine.
func (iw *Watch) armTrailingRescan() {
	if iw.pendingRescan != nil {
		iw.pendingRescan.Reset(iw.cfg.RescanDebounce)
		return
	}
	iw.pendingRescan = time.AfterFunc(iw.cfg.RescanDebounce, func() {
		iw.sink.Submit(iw.runTrailingRescan)
	})
}

// runTrailingRescan is the trailing edge of a debounced burst,
// executed on the worker's drain-loop goroutine via Submit.
func (iw *Watch) runTrailingRescan() {
	iw.pendingRescan = nil
	if iw.closed.Load() {
		return
	}
	iw.rescan()
}

// rescan implements the reconciliation half of iwatch_update on
// directory content changes: scan, diff against the stored snapshot,
// synthesize CREATE/DELETE/MOVED_*/replace events, and reconcile
// subwatches to match.
func (iw *Watch) rescan() {
	newList, err := dirscan.Scan(iw.FD)
	if err != nil {
		iw.reporter.Soft("rescan failed", klog.Fields{Syscall: "dirscan", Inode: iw.Inode, Err: err})
		return
	}
	kmetrics.RescansTotal.Inc()

	if newList.Fingerprint() == iw.Deps.Fingerprint() {
		iw.reporter.Debugf("rescan on inode %d: no change", iw.Inode)
		return
	}

	diff := deplist.Compute(iw.Deps, newList)

	for _, it := range diff.Removed {
		h := iw.Deps.FindByName(it.Name)
		iw.DelSubwatch(it, h)
		iw.Deps.Remove(h)
		iw.emit(kflags.InDelete, it.Type == depitem.Directory, it.Name, 0)
	}

	for _, pair := range diff.Replaced {
		h := iw.Deps.FindByName(pair.Old.Name)
		item := iw.Deps.Item(h)
		iw.DelSubwatch(item, h)
		item.Inode = pair.New.Inode
		item.Type = pair.New.Type
		iw.emit(kflags.InDelete, pair.Old.Type == depitem.Directory, pair.Old.Name, 0)
		if _, err := iw.AddSubwatch(item, h); err != nil {
			iw.reporter.Soft("add_subwatch failed during replace reconciliation", klog.Fields{Path: item.Name, Inode: item.Inode, Err: err})
		}
		iw.emit(kflags.InCreate, item.Type == depitem.Directory, item.Name, 0)
	}

	for _, pair := range diff.Renamed {
		hFrom := iw.Deps.FindByName(pair.From.Name)
		itNew := &depitem.Item{Name: pair.To.Name, Inode: pair.To.Inode, Type: pair.To.Type}
		hTo := iw.Deps.Append(itNew)
		iw.MoveSubwatch(pair.From, itNew, hFrom, hTo)
		iw.Deps.Remove(hFrom)

		cookie := iw.nextCookie()
		iw.emit(kflags.InMovedFrom, pair.From.Type == depitem.Directory, pair.From.Name, cookie)
		iw.emit(kflags.InMovedTo, itNew.Type == depitem.Directory, itNew.Name, cookie)
	}

	for _, it := range diff.Added {
		h := iw.Deps.Append(it)
		if _, err := iw.AddSubwatch(it, h); err != nil {
			iw.reporter.Soft("add_subwatch failed during rescan", klog.Fields{Path: it.Name, Inode: it.Inode, Err: err})
		}
		iw.emit(kflags.InCreate, it.Type == depitem.Directory, it.Name, 0)
	}
}

// emit hands one synthesized event to the sink, applying IN_ISDIR and
// the caller's requested mask filter.
func (iw *Watch) emit(bit kflags.Mask, isDir bool, name string, cookie uint32) {
	if !iw.Flags.Has(bit) {
		return
	}
	mask := uint32(bit)
	if isDir {
		mask |= uint32(kflags.InIsDir)
	}
	if iw.sink != nil {
		iw.sink.Emit(kqworker.RawEvent{WD: iw.WD, Mask: mask, Cookie: cookie, Name: name})
	}
	kmetrics.EventsEmittedTotal.WithLabelValues(bitLabel(bit)).Inc()
}

func bitLabel(bit kflags.Mask) string {
	switch bit {
	case kflags.InCreate:
		return "create"
	case kflags.InDelete:
		return "delete"
	case kflags.InMovedFrom:
		return "moved_from"
	case kflags.InMovedTo:
		return "moved_to"
	case kflags.InModify:
		return "modify"
	case kflags.InAttrib:
		return "attrib"
	case kflags.InOpen:
		return "open"
	case kflags.InCloseWrite:
		return "close_write"
	case kflags.InCloseNoWrite:
		return "close_nowrite"
	case kflags.InDeleteSelf:
		return "delete_self"
	case kflags.InMoveSelf:
		return "move_self"
	default:
		return "other"
	}
}
