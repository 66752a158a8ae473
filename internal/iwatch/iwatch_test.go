//go:build darwin || freebsd

package iwatch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kqinotify/kqinotify/internal/kflags"
	"github.com/kqinotify/kqinotify/internal/kqworker"
)

type fakeRegistrar struct {
	registered   map[int]uint32
	deregistered map[int]int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{registered: map[int]uint32{}, deregistered: map[int]int{}}
}

func (f *fakeRegistrar) KqueueFD() int { return -1 }
func (f *fakeRegistrar) Register(fd int, fflags uint32, handler kqworker.EventHandler) error {
	f.registered[fd] = fflags
	return nil
}
func (f *fakeRegistrar) Deregister(fd int) error {
	f.deregistered[fd]++
	return nil
}

// fakeSink is guarded by mu because the trailing-rescan debounce test
// exercises a real time.AfterFunc, whose callback runs on its own
// goroutine rather than the test goroutine.
type fakeSink struct {
	mu     sync.Mutex
	events []kqworker.RawEvent
}

func (s *fakeSink) Emit(ev kqworker.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Submit runs fn inline. Most of these tests call into iw directly
// from the test goroutine, so there is only one goroutine to funnel
// work onto; the debounce test's timer callback is the exception, and
// fakeSink's own locking covers it.
func (s *fakeSink) Submit(fn func()) {
	fn()
}

func (s *fakeSink) namesWithMask(mask uint32) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, ev := range s.events {
		if ev.Mask&mask != 0 {
			names = append(names, ev.Name)
		}
	}
	return names
}

func openDir(t *testing.T, path string) int {
	t.Helper()
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return fd
}

func TestInitWatchesDirectoryAndExistingEntries(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate|kflags.InDelete|kflags.InModify)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	if iw.Watches.Len() != 2 {
		t.Fatalf("want 2 watches (parent + a), got %d", iw.Watches.Len())
	}
	if iw.Watches.Find(iw.Inode) == nil {
		t.Fatal("I1: parent inode must be findable in the watch-set")
	}
}

func TestAddSubwatchElidesFileWithZeroFflags(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	// CREATE-only mask: regular files need no watch of their own
	// (spec.md §8 scenario 6).
	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	if iw.Watches.Len() != 1 {
		t.Fatalf("want only the parent watch, got %d", iw.Watches.Len())
	}
}

func TestUpdateFlagsOpensChildWatchesOnUpgrade(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))
	must(t, os.WriteFile(filepath.Join(dir, "b"), []byte("y"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	if iw.Watches.Len() != 1 {
		t.Fatalf("want only the parent watch before upgrade, got %d", iw.Watches.Len())
	}

	iw.UpdateFlags(kflags.InModify, false)

	if iw.Watches.Len() != 3 {
		t.Fatalf("want parent + a + b after upgrade, got %d", iw.Watches.Len())
	}
}

func TestUpdateFlagsMaskAddOrsWithPrevious(t *testing.T) {
	dir := t.TempDir()
	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{MaskAddSemantics: true}, 1, fd, kflags.InCreate)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	iw.UpdateFlags(kflags.InDelete, true)
	if !iw.Flags.Has(kflags.InCreate) || !iw.Flags.Has(kflags.InDelete) {
		t.Fatalf("want both bits after ADD-merge, got %v", iw.Flags)
	}
}

func TestRescanEmitsCreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate|kflags.InDelete)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	must(t, os.WriteFile(filepath.Join(dir, "b"), []byte("z"), 0o644))
	must(t, os.Remove(filepath.Join(dir, "a")))

	iw.rescan()

	created := sink.namesWithMask(uint32(kflags.InCreate))
	deleted := sink.namesWithMask(uint32(kflags.InDelete))
	if len(created) != 1 || created[0] != "b" {
		t.Fatalf("want CREATE for b, got %v", created)
	}
	if len(deleted) != 1 || deleted[0] != "a" {
		t.Fatalf("want DELETE for a, got %v", deleted)
	}
}

func TestRescanEmitsMovedFromAndTo(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "x"), []byte("v"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InMovedFrom|kflags.InMovedTo)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	must(t, os.Rename(filepath.Join(dir, "x"), filepath.Join(dir, "y")))
	iw.rescan()

	from := sink.namesWithMask(uint32(kflags.InMovedFrom))
	to := sink.namesWithMask(uint32(kflags.InMovedTo))
	if len(from) != 1 || from[0] != "x" {
		t.Fatalf("want MOVED_FROM x, got %v", from)
	}
	if len(to) != 1 || to[0] != "y" {
		t.Fatalf("want MOVED_TO y, got %v", to)
	}
	if iw.Deps.FindByName("x").Valid() {
		t.Fatal("old name must be gone from the dependency snapshot")
	}
	if !iw.Deps.FindByName("y").Valid() {
		t.Fatal("new name must be present in the dependency snapshot")
	}
}

func TestMaybeRescanArmsTrailingRescanAfterDebounceWindow(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	cfg := Config{RescanDebounce: 20 * time.Millisecond, RescanBurst: 1}
	iw, err := Init(reg, sink, nil, nil, cfg, 1, fd, kflags.InCreate)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()

	// First call consumes the limiter's only token: an immediate,
	// leading-edge rescan that sees no change yet.
	iw.maybeRescan()

	// A write lands inside the debounce window and is denied by the
	// limiter; without a trailing rescan its CREATE would be lost for
	// good once no further NOTE_WRITE arrives.
	must(t, os.WriteFile(filepath.Join(dir, "b"), []byte("y"), 0o644))
	iw.maybeRescan()

	if got := sink.namesWithMask(uint32(kflags.InCreate)); len(got) != 0 {
		t.Fatalf("want no CREATE before the trailing rescan fires, got %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := sink.namesWithMask(uint32(kflags.InCreate)); len(got) == 1 && got[0] == "b" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("trailing rescan never picked up the debounced write")
}

func TestSkipSubfilesOpensNoChildWatches(t *testing.T) {
	dir := t.TempDir()

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	// skipSubfiles can't be forced via the exported Policy without a
	// real matching filesystem type in this sandbox, so this test
	// starts from an empty directory (no entries to open watches for
	// at Init time) and then sets the internal flag directly before
	// exercising the rescan path.
	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate|kflags.InDelete)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer iw.Close()
	iw.skipSubfiles = true

	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))
	must(t, os.WriteFile(filepath.Join(dir, "b"), []byte("y"), 0o644))
	iw.rescan()

	if iw.Watches.Len() != 1 {
		t.Fatalf("want only the parent watch under skip_subfiles, got %d", iw.Watches.Len())
	}
}

func TestCloseTearsDownEveryWatch(t *testing.T) {
	dir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	fd := openDir(t, dir)
	reg := newFakeRegistrar()
	sink := &fakeSink{}

	iw, err := Init(reg, sink, nil, nil, Config{}, 1, fd, kflags.InCreate|kflags.InModify)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	if iw.Watches.Len() != 2 {
		t.Fatalf("want 2 watches before Close, got %d", iw.Watches.Len())
	}

	iw.Close()

	if iw.Watches.Len() != 0 {
		t.Fatalf("want 0 watches after Close, got %d", iw.Watches.Len())
	}
	if len(reg.deregistered) != 2 {
		t.Fatalf("I5: want both fds (parent + a) deregistered exactly once, got %v", reg.deregistered)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
