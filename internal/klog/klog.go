// Package klog is the pluggable soft-error reporter spec.md §7 calls
// for. The interface shape follows DominicBreuker-pspy's
// internal/logging.Logger (a small set of named methods rather than a
// generic io.Writer); the default implementation backs it with
// logrus's structured fields instead of Printf strings, following
// hawkingrei-hoshino's use of logrus for watcher-lifecycle logging.
package klog

import "github.com/sirupsen/logrus"

// Fields carries the structured context spec.md §7 wants for a
// subwatch-soft failure: which syscall failed, on what path, with what
// error.
type Fields struct {
	Syscall string
	Path    string
	Inode   uint64
	Err     error
}

// Reporter receives soft-error and debug notifications from
// internal/iwatch. Soft corresponds to spec.md §7's "Subwatch-soft"
// category: logged, then suppressed. Debugf is used for rescan dedup
// (a rescan that found no change), never surfaced by default.
type Reporter interface {
	Soft(msg string, f Fields)
	Debugf(format string, args ...any)
}

// Logrus is the default Reporter, backed by github.com/sirupsen/logrus.
type Logrus struct {
	entry *logrus.Entry
}

// NewLogrus wraps a *logrus.Logger (or logrus.StandardLogger() if nil)
// as a Reporter.
func NewLogrus(l *logrus.Logger) *Logrus {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &Logrus{entry: logrus.NewEntry(l)}
}

func (r *Logrus) Soft(msg string, f Fields) {
	entry := r.entry.WithFields(logrus.Fields{
		"syscall": f.Syscall,
		"path":    f.Path,
		"inode":   f.Inode,
	})
	if f.Err != nil {
		entry = entry.WithError(f.Err)
	}
	entry.Warn(msg)
}

func (r *Logrus) Debugf(format string, args ...any) {
	r.entry.Debugf(format, args...)
}

// Nop discards everything; useful in tests that don't want log noise.
type Nop struct{}

func (Nop) Soft(msg string, f Fields)         {}
func (Nop) Debugf(format string, args ...any) {}
