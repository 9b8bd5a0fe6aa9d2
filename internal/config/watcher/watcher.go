// Package watcher observes well-known lint configuration files and
// triggers a callback when one is created, changed, or deleted.
//
// Each watched filename gets its own disposable Handle. Disposal is
// idempotent and guarantees the callback is never invoked afterwards,
// even for events that were already queued when Dispose was called.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultConfigFiles is the fixed ordered set of configuration
// filenames the lint tool reads: the primary config file, its alternate
// form, the shared multi-tool config, and the two shared build configs.
func DefaultConfigFiles() []string {
	return []string{".pylintrc", "pylintrc", "pyproject.toml", "setup.cfg", "tox.ini"}
}

// Handle watches one filename pattern under a workspace root.
type Handle struct {
	name string
	root string

	fsw       *fsnotify.Watcher
	onChanged func()
	log       *zap.Logger

	// cbMu excludes callback starts against disposal: Dispose takes
	// the write side after flagging, so once it returns no callback is
	// running or can start.
	cbMu     sync.RWMutex
	disposed atomic.Bool

	done        chan struct{}
	wg          sync.WaitGroup
	disposeOnce sync.Once
	disposeErr  error
}

// Watch creates one Handle per filename, each watching root and all its
// subdirectories for that name. The callback runs asynchronously; a
// panicking callback is caught and logged, never propagated to the
// event source. Handles already created are disposed if a later one
// fails to start.
func Watch(root string, names []string, onChanged func(), log *zap.Logger) ([]*Handle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("watcher")

	handles := make([]*Handle, 0, len(names))
	for _, name := range names {
		h, err := newHandle(root, name, onChanged, log)
		if err != nil {
			for _, prev := range handles {
				prev.Dispose()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func newHandle(root, name string, onChanged func(), log *zap.Logger) (*Handle, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	h := &Handle{
		name:      name,
		root:      root,
		fsw:       fsw,
		onChanged: onChanged,
		log:       log.With(zap.String("pattern", "**/"+name)),
		done:      make(chan struct{}),
	}

	if err := h.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	h.wg.Add(1)
	go h.eventLoop()
	return h, nil
}

// Pattern returns the watched filename pattern.
func (h *Handle) Pattern() string {
	return "**/" + h.name
}

// Dispose stops watching and releases the underlying watcher. It is
// safe to call multiple times; events queued before disposal do not
// reach the callback.
func (h *Handle) Dispose() error {
	h.disposed.Store(true)
	h.disposeOnce.Do(func() {
		close(h.done)
		err := h.fsw.Close()
		h.wg.Wait()

		// Block until in-flight callbacks have drained.
		h.cbMu.Lock()
		h.cbMu.Unlock() //nolint:staticcheck // barrier, not a critical section

		h.disposeErr = err
	})
	return h.disposeErr
}

// addTree registers root and every subdirectory with fsnotify. Watching
// directories is enough: fsnotify reports events for files inside them.
func (h *Handle) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep walking
		}
		if !d.IsDir() {
			return nil
		}
		if err := h.fsw.Add(path); err != nil {
			h.log.Debug("watch add failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (h *Handle) eventLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return

		case ev, ok := <-h.fsw.Events:
			if !ok {
				return
			}
			h.handleEvent(ev)

		case err, ok := <-h.fsw.Errors:
			if !ok {
				return
			}
			h.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (h *Handle) handleEvent(ev fsnotify.Event) {
	// New directories join the watch so the recursive glob keeps
	// holding as the tree grows.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = h.fsw.Add(ev.Name)
		}
	}

	if filepath.Base(ev.Name) != h.name {
		return
	}
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	go h.invoke(ev)
}

// invoke runs the callback for one event. The disposed check happens
// under the read lock so Dispose cannot return while a callback is
// still running.
func (h *Handle) invoke(ev fsnotify.Event) {
	h.cbMu.RLock()
	defer h.cbMu.RUnlock()

	if h.disposed.Load() {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.log.Error("config change callback failed",
				zap.String("file", ev.Name),
				zap.Any("panic", r))
		}
	}()

	h.log.Debug("config file changed",
		zap.String("file", ev.Name),
		zap.String("op", ev.Op.String()))
	h.onChanged()
}
