//go:build darwin || freebsd

// Package notify is the public, inotify-syscall-shaped surface spec.md
// §1 places out of scope for the core ("the user-visible inotify
// syscall surface... is out of scope"), supplemented here so the core
// is reachable from outside this module: Init plays inotify_init1,
// AddWatch plays inotify_add_watch, RemoveWatch plays inotify_rm_watch,
// and Events plays the blocking read off the client ring buffer.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/kqinotify/kqinotify/config"
	"github.com/kqinotify/kqinotify/internal/iwatch"
	"github.com/kqinotify/kqinotify/internal/kflags"
	"github.com/kqinotify/kqinotify/internal/klog"
	"github.com/kqinotify/kqinotify/internal/kqworker"
	"github.com/kqinotify/kqinotify/internal/skipfs"
	"github.com/kqinotify/kqinotify/internal/statusapi"
)

// Event is the wire-shaped record a client sees for one synthesized
// inotify event. Mask uses the same bit layout as kflags.Mask; Cookie
// pairs a MOVED_FROM with its MOVED_TO.
type Event struct {
	WD     int
	Mask   uint32
	Cookie uint32
	Name   string
}

// Instance is one client's inotify-emulation session: one kqueue
// worker, and every i_watch opened against it.
type Instance struct {
	worker   *kqworker.Worker
	cfg      config.Config
	reporter klog.Reporter
	policy   *skipfs.Policy

	events chan Event

	mu      sync.Mutex
	watches map[int]*iwatch.Watch
	nextWD  int
	closed  bool

	statusSrv *http.Server
}

// Init plays inotify_init1: it opens the underlying kqueue and starts
// the goroutine that turns kqworker.RawEvent tuples into Events.
func Init(cfg config.Config) (*Instance, error) {
	worker, err := kqworker.New()
	if err != nil {
		return nil, fmt.Errorf("notify: init: %w", err)
	}

	inst := &Instance{
		worker:   worker,
		cfg:      cfg,
		reporter: klog.NewLogrus(nil),
		policy:   skipfs.New(cfg.SkipFSTypes),
		events:   make(chan Event, 128),
		watches:  make(map[int]*iwatch.Watch),
		nextWD:   1,
	}
	go inst.pump()

	if cfg.HTTPAddr != "" {
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: statusapi.NewRouter(inst)}
		inst.statusSrv = srv
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				inst.reporter.Soft("statusapi: listen", klog.Fields{Err: err})
			}
		}()
	}

	return inst, nil
}

// Watches implements statusapi.Source, snapshotting every open i_watch
// for the read-only HTTP introspection surface.
func (i *Instance) Watches() []statusapi.WatchInfo {
	i.mu.Lock()
	defer i.mu.Unlock()
	infos := make([]statusapi.WatchInfo, 0, len(i.watches))
	for wd, iw := range i.watches {
		infos = append(infos, statusapi.WatchInfo{
			WD:         wd,
			Inode:      iw.Inode,
			Dev:        iw.Dev,
			Mask:       uint32(iw.Flags),
			Subwatches: iw.Watches.Len() - 1,
		})
	}
	return infos
}

// AddWatch plays inotify_add_watch: open path relative to AT_FDCWD
// (the same openat-relative primitive subwatches use, per
// SUPPLEMENTED FEATURES #1) and hand it to iwatch.Init.
func (i *Instance) AddWatch(path string, mask kflags.Mask) (int, error) {
	openFlags := unix.O_RDONLY | unix.O_CLOEXEC
	if !i.cfg.FollowSymlinks {
		openFlags |= unix.O_NOFOLLOW
	}
	fd, err := unix.Openat(unix.AT_FDCWD, path, openFlags, 0)
	if err != nil {
		return -1, fmt.Errorf("notify: open %s: %w", path, err)
	}

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		unix.Close(fd)
		return -1, fmt.Errorf("notify: instance closed")
	}
	wd := i.nextWD
	i.nextWD++
	i.mu.Unlock()

	iwCfg := iwatch.Config{
		FollowSymlinks:   i.cfg.FollowSymlinks,
		MaskAddSemantics: i.cfg.MaskAddSemantics,
		RescanDebounce:   i.cfg.RescanDebounce,
		RescanBurst:      1,
	}
	var iw *iwatch.Watch
	var initErr error
	if !i.runOnWorker(func() {
		iw, initErr = iwatch.Init(i.worker, i.worker, i.reporter, i.policy, iwCfg, wd, fd, mask)
	}) {
		unix.Close(fd)
		return -1, fmt.Errorf("notify: instance closed")
	}
	if initErr != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("notify: add watch on %s: %w", path, initErr)
	}

	i.mu.Lock()
	i.watches[wd] = iw
	i.mu.Unlock()
	return wd, nil
}

// RemoveWatch plays inotify_rm_watch.
func (i *Instance) RemoveWatch(wd int) error {
	i.mu.Lock()
	iw, ok := i.watches[wd]
	delete(i.watches, wd)
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify: unknown watch descriptor %d", wd)
	}
	i.runOnWorker(iw.Close)
	return nil
}

// runOnWorker submits fn to the kqueue worker's drain-loop goroutine
// and blocks until it has run, funneling every i_watch mutation onto
// the same goroutine that calls EventHandler.HandleKevent (spec.md
// §5: "all operations on an i_watch ... run on that worker's
// context"). It reports whether fn actually ran; if the worker is
// already shutting down, fn is dropped and runOnWorker returns false.
func (i *Instance) runOnWorker(fn func()) bool {
	done := make(chan struct{})
	i.worker.Submit(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return true
	case <-i.worker.Done():
		return false
	}
}

// Events returns the channel of synthesized events, playing the
// client's blocking read off the inotify ring buffer.
func (i *Instance) Events() <-chan Event {
	return i.events
}

// Close tears down every open watch and the underlying kqueue.
func (i *Instance) Close() error {
	i.mu.Lock()
	i.closed = true
	watches := make([]*iwatch.Watch, 0, len(i.watches))
	for wd, iw := range i.watches {
		watches = append(watches, iw)
		delete(i.watches, wd)
	}
	i.mu.Unlock()

	i.runOnWorker(func() {
		for _, iw := range watches {
			iw.Close()
		}
	})

	if i.statusSrv != nil {
		_ = i.statusSrv.Shutdown(context.Background())
	}
	return i.worker.Close()
}

func (i *Instance) pump() {
	for raw := range i.worker.Events() {
		i.events <- Event{WD: raw.WD, Mask: raw.Mask, Cookie: raw.Cookie, Name: raw.Name}
	}
	close(i.events)
}
