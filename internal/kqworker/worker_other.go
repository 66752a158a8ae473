//go:build !darwin && !freebsd

package kqworker

import "errors"

// ErrUnsupported is returned by New on platforms with no EVFILT_VNODE.
var ErrUnsupported = errors.New("kqworker: kqueue backend not supported on this platform")

// Worker is an unusable stand-in that keeps the package importable on
// non-kqueue platforms; every method fails or no-ops rather than the
// package refusing to compile.
type Worker struct{}

func New() (*Worker, error) {
	return nil, ErrUnsupported
}

func (w *Worker) KqueueFD() int { return -1 }

func (w *Worker) Register(fd int, fflags uint32, handler EventHandler) error {
	return ErrUnsupported
}

func (w *Worker) Deregister(fd int) error { return nil }

func (w *Worker) Events() <-chan RawEvent { return nil }

func (w *Worker) Emit(ev RawEvent) {}

func (w *Worker) Submit(fn func()) {}

func (w *Worker) Done() <-chan struct{} { return nil }

func (w *Worker) Close() error { return nil }
