package config

import (
	"log/slog"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk and hands each
// valid reload to a callback. Only the hot sections are worth reacting to
// while a console session is live: the security filter and the custom prompt
// rules. Transport, credentials, and timeouts are fixed at connect time, and
// a rewrite that leaves the hot sections untouched is absorbed without
// notifying.
type Watcher struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange func(*Config)
	done     chan struct{}
}

// NewWatcher loads the config at path and starts watching it for changes.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		config:   cfg,
		watcher:  fsWatcher,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	// Editors replace the file rather than write in place, which drops the
	// watch on the old inode; watching the directory survives that.
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.watch()
	return w, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) watch() {
	filename := filepath.Base(w.path)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("failed to reload config",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config after reload, keeping previous",
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	prev := w.config
	w.config = cfg
	w.mu.Unlock()

	if !hotSectionsChanged(prev, cfg) {
		slog.Debug("config rewritten without hot-section changes", slog.String("path", w.path))
		return
	}

	slog.Info("config reloaded",
		slog.String("path", w.path),
		slog.Int("prompt_rules", len(cfg.PromptRules)),
		slog.Int("blocklist", len(cfg.Security.CommandBlocklist)),
		slog.Int("allowlist", len(cfg.Security.CommandAllowlist)),
	)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

// hotSectionsChanged reports whether a reload touched anything a live
// session consumes.
func hotSectionsChanged(prev, next *Config) bool {
	return !reflect.DeepEqual(prev.Security, next.Security) ||
		!reflect.DeepEqual(prev.PromptRules, next.PromptRules)
}

// Close stops watching and cleans up.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
