// Package kqworker implements the worker contract from spec.md §6
// (component C7): the thread that owns a single kqueue file descriptor,
// registers/deregisters EVFILT_VNODE watches on it, and drains kevents
// serially onto a channel of RawEvent tuples.
//
// Everything internal/watch and internal/iwatch need from a worker is
// captured by the Registrar and EventHandler interfaces in this file, so
// those packages can be exercised with a fake in tests without linking
// against a real kqueue.
package kqworker

// EventHandler receives the fflags observed on one registered fd. The
// caller of Registrar.Register supplies the handler that owns that fd;
// this is the Go-idiomatic replacement for the raw kevent udata pointer
// spec.md §6 describes ("udata identifies the owning watch").
type EventHandler interface {
	HandleKevent(fflags uint32)
}

// Registrar is the worker contract consumed by internal/watch and
// internal/iwatch (spec.md §6, C7):
//
//	worker.kqueue_fd            -> KqueueFD
//	worker.register(fd, ...)    -> Register
//	worker.deregister(fd)       -> Deregister
type Registrar interface {
	KqueueFD() int
	Register(fd int, fflags uint32, handler EventHandler) error
	Deregister(fd int) error
}

// RawEvent is the (wd, mask, cookie, name) tuple spec.md §6 says the core
// hands to the worker's event sink. wire formatting into a client-visible
// ring buffer is explicitly out of scope for this repository's core
// (spec.md §1); RawEvent is as far as this library goes, and the
// supplemented notify package turns it into a notify.Event.
type RawEvent struct {
	WD     int
	Mask   uint32
	Cookie uint32
	Name   string
}
