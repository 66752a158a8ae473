//go:build !darwin && !freebsd

package dirscan

import (
	"errors"

	"github.com/kqinotify/kqinotify/internal/deplist"
)

// ErrUnsupported is returned by Scan on platforms with no kqueue-based
// core, keeping the package importable everywhere.
var ErrUnsupported = errors.New("dirscan: not supported on this platform")

func Scan(dirFD int) (*deplist.List, error) {
	return nil, ErrUnsupported
}
