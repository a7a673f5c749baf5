package local

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/debounce"
	"go.uber.org/zap"
)

// DefaultWatchDelay collapses the create/write/rename burst of one atomic save.
const DefaultWatchDelay = 100 * time.Millisecond

// Watch calls onChange whenever the storage file changes on disk, including
// writes by other processes. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, delay time.Duration, onChange func()) error {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("creating watcher: %w", err))
	}
	defer watcher.Close()

	// The directory is watched, not the file: atomic saves replace the inode.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("watching %s: %w", dir, err))
	}

	changes := debounce.New(0, delay, func(int) { onChange() })
	defer changes.Stop()

	target := filepath.Clean(s.path)
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("storage file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			n++
			changes.Set(n)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}
