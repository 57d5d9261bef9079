// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher monitors a servers file for changes and triggers a
// registry re-sync. Events are debounced so editors that write in multiple
// steps cause a single sync.
type ConfigWatcher struct {
	// fsWatcher is the underlying filesystem watcher.
	fsWatcher *fsnotify.Watcher

	// path is the absolute path of the watched servers file.
	path string

	// onChange is invoked after the debounce window closes.
	onChange func()

	// debounceDelay is the delay before invoking onChange after an event.
	debounceDelay time.Duration

	// pending is the active debounce timer, if any.
	pending *time.Timer

	// logger is used for structured logging.
	logger *slog.Logger

	// mu protects pending.
	mu sync.Mutex

	// ctx is the watcher's lifecycle context.
	ctx context.Context

	// cancel stops the watcher.
	cancel context.CancelFunc

	// wg tracks the event loop.
	wg sync.WaitGroup
}

// ConfigWatcherConfig configures the file watcher.
type ConfigWatcherConfig struct {
	// Path is the servers file to watch. Required.
	Path string

	// OnChange is invoked after a debounced change. Required.
	OnChange func()

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// DebounceDelay is the delay before invoking OnChange after file
	// changes (defaults to 200ms).
	DebounceDelay time.Duration
}

// NewConfigWatcher creates and starts a watcher for the servers file. The
// file's parent directory is watched so the file may be created, replaced
// or renamed into place after the watcher starts.
func NewConfigWatcher(cfg ConfigWatcherConfig) (*ConfigWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("onChange is required")
	}

	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &ConfigWatcher{
		fsWatcher:     fsWatcher,
		path:          absPath,
		onChange:      cfg.OnChange,
		debounceDelay: debounceDelay,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// processEvents processes filesystem events and schedules debounced syncs.
func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleSync()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

// scheduleSync (re)starts the debounce timer.
func (w *ConfigWatcher) scheduleSync() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, func() {
		w.logger.Debug("servers file changed, re-syncing", "path", w.path)
		w.onChange()
	})
}

// Close stops the watcher and waits for the event loop to exit.
func (w *ConfigWatcher) Close() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	return err
}
