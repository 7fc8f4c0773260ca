package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Holder keeps the active schema for a serving process. Readers call
// Current from any goroutine; Reload swaps in a freshly loaded schema.
type Holder struct {
	path       string
	logger     *slog.Logger
	check      func(*Schema) error
	companions []string
	cur        atomic.Pointer[Schema]
	mu         sync.Mutex // serializes reloads
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithCheck runs fn on every loaded schema before it becomes active,
// the first load included. A non-nil error rejects the candidate and
// the previous schema stays in place.
func WithCheck(fn func(*Schema) error) HolderOption {
	return func(h *Holder) { h.check = fn }
}

// WithCompanions names files whose changes also trigger a reload under
// Watch, such as the model artifact paired with the schema.
func WithCompanions(paths ...string) HolderOption {
	return func(h *Holder) { h.companions = append(h.companions, paths...) }
}

// NewHolder loads path once and returns a Holder for it.
func NewHolder(path string, logger *slog.Logger, opts ...HolderOption) (*Holder, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Holder{path: path, logger: logger}
	for _, o := range opts {
		o(h)
	}
	if _, err := h.Reload(); err != nil {
		return nil, err
	}
	return h, nil
}

// Path returns the schema file path.
func (h *Holder) Path() string { return h.path }

// Current returns the active schema.
func (h *Holder) Current() *Schema { return h.cur.Load() }

// Reload re-reads the schema file and runs the check, if any. Loading an
// unchanged file leaves the active schema in place and reports
// changed=false.
func (h *Holder) Reload() (changed bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := Load(h.path)
	if err != nil {
		return false, err
	}
	if h.check != nil {
		if err := h.check(s); err != nil {
			h.logger.Warn("schema rejected", "path", h.path, "columns", s.Len(), "error", err)
			return false, err
		}
	}
	old := h.cur.Load()
	if old.Equal(s) {
		return false, nil
	}
	h.cur.Store(s)
	h.logger.Info("schema loaded", "path", h.path, "columns", s.Len())
	return true, nil
}

// Watch reloads the schema whenever its file or a companion is written
// or replaced, until ctx is cancelled. A failed reload keeps the
// previous schema.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch directories: Save replaces files by rename, which drops
	// watches held on the old inode.
	targets := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range append([]string{h.path}, h.companions...) {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, _ := filepath.Abs(event.Name); !targets[name] {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(100*time.Millisecond, func() {
				if _, err := h.Reload(); err != nil {
					h.logger.Error("schema reload failed", "path", h.path, "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error("watcher error", "error", err)
		}
	}
}
