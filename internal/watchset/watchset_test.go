package watchset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kqinotify/kqinotify/internal/kqworker"
	"github.com/kqinotify/kqinotify/internal/watch"
	"github.com/kqinotify/kqinotify/internal/watchset"
)

type fakeRegistrar struct{}

func (fakeRegistrar) KqueueFD() int { return -1 }
func (fakeRegistrar) Register(fd int, fflags uint32, handler kqworker.EventHandler) error {
	return nil
}
func (fakeRegistrar) Deregister(fd int) error { return nil }

type fakeHandler struct{}

func (fakeHandler) HandleKevent(fflags uint32) {}

func mustWatch(t *testing.T, ino uint64) *watch.Watch {
	t.Helper()
	w, err := watch.New(fakeRegistrar{}, watch.Dependency, int(ino), ino, 0, fakeHandler{})
	require.NoError(t, err)
	return w
}

func TestInsertFindDelete(t *testing.T) {
	s := watchset.New()
	w := mustWatch(t, 10)

	require.NoError(t, s.Insert(w))
	assert.Same(t, w, s.Find(10))
	assert.Equal(t, 1, s.Len())

	s.Delete(10)
	assert.Nil(t, s.Find(10))
	assert.Equal(t, 0, s.Len())
}

func TestInsertDuplicateInodeFails(t *testing.T) {
	s := watchset.New()
	require.NoError(t, s.Insert(mustWatch(t, 10)))
	err := s.Insert(mustWatch(t, 10))
	assert.Error(t, err)
}

func TestForEachVisitsAll(t *testing.T) {
	s := watchset.New()
	require.NoError(t, s.Insert(mustWatch(t, 1)))
	require.NoError(t, s.Insert(mustWatch(t, 2)))

	seen := map[uint64]bool{}
	s.ForEach(func(ino uint64, w *watch.Watch) {
		seen[ino] = true
	})
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}
