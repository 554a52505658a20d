package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/rockerboo/lsp-broker/internal/logger"
)

// Watcher holds the live configuration and swaps it atomically whenever the
// backing file changes on disk. A parse failure on reload keeps serving the
// previous, last-known-good config.
type Watcher struct {
	path string
	cur  atomic.Pointer[Config]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path once and starts watching it for changes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fw, done: make(chan struct{})}
	w.cur.Store(cfg)
	go w.run()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.cur.Load()
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Warn("config reload failed, keeping previous config", "path", w.path, "error", err)
		return
	}
	w.cur.Store(cfg)
	logger.Info("config reloaded", "path", w.path)
}
