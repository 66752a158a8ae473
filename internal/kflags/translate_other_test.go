//go:build !darwin && !freebsd

package kflags_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kqinotify/kqinotify/internal/depitem"
	"github.com/kqinotify/kqinotify/internal/kflags"
)

func TestUnsupportedPlatformNeverOpensWatches(t *testing.T) {
	assert.Zero(t, kflags.InotifyToKqueue(kflags.InAllEvents, depitem.Directory, true))
	assert.Zero(t, kflags.KqueueToInotifyHint(^uint32(0), true))
}
