//go:build !darwin && !freebsd

package notify

import (
	"errors"

	"github.com/kqinotify/kqinotify/config"
	"github.com/kqinotify/kqinotify/internal/kflags"
)

// ErrUnsupported is returned by Init on platforms with no EVFILT_VNODE.
var ErrUnsupported = errors.New("notify: kqueue backend not supported on this platform")

type Event struct {
	WD     int
	Mask   uint32
	Cookie uint32
	Name   string
}

type Instance struct{}

func Init(cfg config.Config) (*Instance, error) { return nil, ErrUnsupported }

func (i *Instance) AddWatch(path string, mask kflags.Mask) (int, error) { return -1, ErrUnsupported }
func (i *Instance) RemoveWatch(wd int) error                            { return ErrUnsupported }
func (i *Instance) Events() <-chan Event                                { return nil }
func (i *Instance) Close() error                                        { return nil }
