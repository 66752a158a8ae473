package watch_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqinotify/kqinotify/internal/deplist"
	"github.com/kqinotify/kqinotify/internal/depitem"
	"github.com/kqinotify/kqinotify/internal/kqworker"
	"github.com/kqinotify/kqinotify/internal/watch"
)

type fakeRegistrar struct {
	registered   map[int]uint32
	deregistered map[int]int
	failRegister bool
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		registered:   make(map[int]uint32),
		deregistered: make(map[int]int),
	}
}

func (f *fakeRegistrar) KqueueFD() int { return -1 }

func (f *fakeRegistrar) Register(fd int, fflags uint32, handler kqworker.EventHandler) error {
	if f.failRegister {
		return errors.New("boom")
	}
	f.registered[fd] = fflags
	return nil
}

func (f *fakeRegistrar) Deregister(fd int) error {
	f.deregistered[fd]++
	return nil
}

type fakeHandler struct{}

func (fakeHandler) HandleKevent(fflags uint32) {}

func TestNewRegistersFD(t *testing.T) {
	reg := newFakeRegistrar()
	w, err := watch.New(reg, watch.Dependency, 7, 42, 0x1, fakeHandler{})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1), reg.registered[7])
	assert.Equal(t, watch.Dependency, w.Kind)
	assert.True(t, w.DepsEmpty())
}

func TestNewPropagatesRegisterFailure(t *testing.T) {
	reg := newFakeRegistrar()
	reg.failRegister = true
	_, err := watch.New(reg, watch.User, 7, 42, 0x1, fakeHandler{})
	assert.Error(t, err)
}

func TestAddDepReregistersOnFflagChange(t *testing.T) {
	reg := newFakeRegistrar()
	w, err := watch.New(reg, watch.Dependency, 7, 42, 0x1, fakeHandler{})
	require.NoError(t, err)

	list := deplist.New()
	h := list.Append(&depitem.Item{Name: "a", Inode: 42})

	require.NoError(t, w.AddDep(h, 0x3))
	assert.Equal(t, uint32(0x3), reg.registered[7])
	assert.True(t, w.HasDep(h))
}

func TestDelDepClosesWatchWhenLastDepRemoved(t *testing.T) {
	reg := newFakeRegistrar()
	w, err := watch.New(reg, watch.Dependency, 7, 42, 0x1, fakeHandler{})
	require.NoError(t, err)

	list := deplist.New()
	h := list.Append(&depitem.Item{Name: "a", Inode: 42})
	require.NoError(t, w.AddDep(h, 0x1))

	closed := w.DelDep(h)
	assert.True(t, closed)
	assert.Equal(t, 1, reg.deregistered[7])
}

func TestUserRequestedWatchSurvivesEmptyDeps(t *testing.T) {
	reg := newFakeRegistrar()
	w, err := watch.New(reg, watch.User, 7, 42, 0x1, fakeHandler{})
	require.NoError(t, err)
	w.MarkUserRequested()

	assert.False(t, w.DepsEmpty())
}

func TestChgDepSwapsWithoutTouchingRegistration(t *testing.T) {
	reg := newFakeRegistrar()
	w, err := watch.New(reg, watch.Dependency, 7, 42, 0x1, fakeHandler{})
	require.NoError(t, err)

	list := deplist.New()
	from := list.Append(&depitem.Item{Name: "x", Inode: 42})
	require.NoError(t, w.AddDep(from, 0x1))

	list2 := deplist.New()
	to := list2.Append(&depitem.Item{Name: "y", Inode: 42})

	w.ChgDep(from, to)
	assert.False(t, w.HasDep(from))
	assert.True(t, w.HasDep(to))
	assert.Equal(t, 0, reg.deregistered[7])
}
