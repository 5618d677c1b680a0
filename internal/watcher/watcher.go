// Package watcher guards the database file on disk. If the file or its
// directory disappears while the service runs, the registered callback gets
// a chance to recreate the schema instead of letting every query fail.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors a file for deletion and calls onDelete when it is
// removed. The parent directory is what is actually watched, since fsnotify
// cannot watch a path that no longer exists.
type Watcher struct {
	targetPath string
	parentPath string
	onDelete   func()
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	running    bool
	debounce   time.Duration
}

// New creates a watcher for targetPath. Call Start to begin watching.
func New(targetPath string, onDelete func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		targetPath: filepath.Clean(targetPath),
		parentPath: filepath.Dir(targetPath),
		onDelete:   onDelete,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debounce:   100 * time.Millisecond,
	}, nil
}

// Start begins watching. Safe to call more than once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to add initial watch")
	}
	go w.watchLoop()
	return nil
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()
	return w.watcher.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); os.IsNotExist(err) {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

func (w *Watcher) watchLoop() {
	var deleteTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if deleteTimer != nil {
				deleteTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			eventPath := filepath.Clean(event.Name)

			switch {
			case event.Op&fsnotify.Remove != 0 && (eventPath == w.targetPath || eventPath == w.parentPath):
				log.Info().Str("path", eventPath).Msg("Watched path deleted")
				// Debounce so a quick delete-and-replace (editors,
				// sqlite checkpoints) does not trigger recreation.
				if deleteTimer != nil {
					deleteTimer.Stop()
				}
				deleteTimer = time.AfterFunc(w.debounce, w.handleDeletion)

			case event.Op&fsnotify.Create != 0 && eventPath == w.targetPath:
				// Target came back before the debounce fired.
				if deleteTimer != nil {
					deleteTimer.Stop()
					deleteTimer = nil
				}

			case event.Op&fsnotify.Create != 0 && eventPath == w.parentPath:
				log.Info().Str("path", w.parentPath).Msg("Directory recreated, re-establishing watch")
				_ = w.addWatch()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleDeletion() {
	log.Info().Str("path", w.targetPath).Msg("Database file removed, invoking recovery")
	if w.onDelete != nil {
		w.onDelete()
	}
	// The recovery callback may have recreated the directory; give it a
	// moment and re-attach.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := w.addWatch(); err != nil {
			log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to re-establish watch")
		}
	}()
}
