//go:build darwin || freebsd

package kqworker

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Worker owns one kqueue fd and the goroutine that drains it. All state
// touched by loop() is only ever touched by loop() and by the handlers
// it calls out into; Register/Deregister only mutate the handler map,
// which is guarded by mu since callers run on whatever goroutine holds
// the watch that's adding or dropping a subwatch.
//
// Submit funnels other mutations (iwatch.Init/Close/UpdateFlags, called
// from outside the drain loop, e.g. by the public notify package) onto
// this same goroutine, so an i_watch's unsynchronized state (watchset,
// deplist) is never touched from two goroutines at once, per spec.md §5.
type Worker struct {
	kq int

	mu       sync.Mutex
	handlers map[int]EventHandler

	events chan RawEvent
	cmds   chan func()

	closepipe [2]int
	closeOnce sync.Once
	done      chan struct{}
}

// New opens a kqueue and starts the drain loop. The returned Worker must
// be closed with Close once no longer needed, or the kqueue fd leaks.
func New() (*Worker, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqworker: kqueue: %w", err)
	}
	if err := unix.CloseOnExec(kq); err != nil {
		unix.Close(kq)
		return nil, fmt.Errorf("kqworker: cloexec: %w", err)
	}

	var cp [2]int
	if err := unix.Pipe(cp[:]); err != nil {
		unix.Close(kq)
		return nil, fmt.Errorf("kqworker: pipe: %w", err)
	}
	if err := unix.SetNonblock(cp[0], true); err != nil {
		unix.Close(kq)
		unix.Close(cp[0])
		unix.Close(cp[1])
		return nil, fmt.Errorf("kqworker: closepipe nonblock: %w", err)
	}

	w := &Worker{
		kq:        kq,
		handlers:  make(map[int]EventHandler),
		events:    make(chan RawEvent, 64),
		cmds:      make(chan func(), 64),
		closepipe: cp,
		done:      make(chan struct{}),
	}

	kevs := make([]unix.Kevent_t, 1)
	// EV_CLEAR: the wake pipe is used both to unblock a pending kevent
	// wait on Close and to signal a queued Submit command. Without
	// EV_CLEAR, leftover unread bytes would make this event level-fire
	// on every subsequent poll.
	unix.SetKevent(&kevs[0], w.closepipe[0], unix.EVFILT_READ, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(w.kq, kevs, nil, nil); err != nil {
		unix.Close(w.kq)
		unix.Close(w.closepipe[0])
		unix.Close(w.closepipe[1])
		return nil, fmt.Errorf("kqworker: register closepipe: %w", err)
	}

	go w.loop()
	return w, nil
}

// KqueueFD returns the fd backing this worker's kqueue.
func (w *Worker) KqueueFD() int {
	return w.kq
}

// Register adds or updates an EVFILT_VNODE watch on fd, delivering
// observed fflags to handler. EV_CLEAR keeps kqueue from re-delivering
// the same fflags on every poll once they've fired once, matching the
// edge-triggered semantics inotify-watch.c assumes of EVFILT_VNODE.
func (w *Worker) Register(fd int, fflags uint32, handler EventHandler) error {
	w.mu.Lock()
	w.handlers[fd] = handler
	w.mu.Unlock()

	kevs := make([]unix.Kevent_t, 1)
	unix.SetKevent(&kevs[0], fd, unix.EVFILT_VNODE, unix.EV_ADD|unix.EV_CLEAR)
	kevs[0].Fflags = fflags
	if success, err := unix.Kevent(w.kq, kevs, nil, nil); success == -1 {
		w.mu.Lock()
		delete(w.handlers, fd)
		w.mu.Unlock()
		return fmt.Errorf("kqworker: register fd %d: %w", fd, err)
	}
	return nil
}

// Deregister drops the handler for fd. Per spec.md §7 this never fails
// the caller: the fd is about to be closed, which implicitly removes
// its kqueue registration, so there's nothing left to clean up here
// beyond forgetting the handler.
func (w *Worker) Deregister(fd int) error {
	w.mu.Lock()
	delete(w.handlers, fd)
	w.mu.Unlock()
	return nil
}

// Events returns the channel that Emit delivers RawEvent tuples on; it
// is closed when the drain loop exits. The worker itself only knows fds
// and fflags: internal/iwatch builds each RawEvent and hands it to
// Emit, and the notify package reads this channel.
func (w *Worker) Events() <-chan RawEvent {
	return w.events
}

// Emit pushes ev onto the events channel, dropping it if the worker has
// been closed rather than blocking forever on a channel nobody drains.
func (w *Worker) Emit(ev RawEvent) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// Submit queues fn to run on the drain-loop goroutine — the same
// goroutine that calls EventHandler.HandleKevent — and wakes a blocked
// kevent wait so fn runs promptly instead of waiting for the next
// vnode event. Submit does not wait for fn to run; callers that need
// the result close their own channel from inside fn. If the worker is
// already closed, fn is dropped.
func (w *Worker) Submit(fn func()) {
	select {
	case w.cmds <- fn:
	case <-w.done:
		return
	}
	select {
	case <-w.done:
	default:
		_, _ = unix.Write(w.closepipe[1], []byte{0})
	}
}

// Done returns a channel closed once Close has been called, so callers
// blocked waiting on a Submit-ted fn to run can give up if the worker
// shuts down first instead of hanging forever.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Close stops the drain loop and releases the kqueue fd. Safe to call
// more than once.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		_, _ = unix.Write(w.closepipe[1], []byte{0})
		unix.Close(w.closepipe[1])
	})
	return nil
}

func (w *Worker) loop() {
	defer func() {
		close(w.events)
		unix.Close(w.kq)
		unix.Close(w.closepipe[0])
	}()

	buf := make([]unix.Kevent_t, 16)
	drainBuf := make([]byte, 64)
	for {
		n, err := unix.Kevent(w.kq, nil, buf, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		woke := false
		for i := 0; i < n; i++ {
			ident := int(buf[i].Ident)
			if ident == w.closepipe[0] {
				woke = true
				continue
			}

			w.mu.Lock()
			h := w.handlers[ident]
			w.mu.Unlock()
			if h == nil {
				continue
			}
			h.HandleKevent(uint32(buf[i].Fflags))
		}

		if !woke {
			continue
		}

		for {
			if _, err := unix.Read(w.closepipe[0], drainBuf); err != nil {
				break
			}
		}

		select {
		case <-w.done:
			return
		default:
		}

		w.drainCmds()
	}
}

func (w *Worker) drainCmds() {
	for {
		select {
		case fn := <-w.cmds:
			fn()
		default:
			return
		}
	}
}
