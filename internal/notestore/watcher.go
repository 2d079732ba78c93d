package notestore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called for each note file changed on disk.
// kind is one of "updated" or "deleted".
type EventCallback func(kind, id string)

const watchDebounce = 200 * time.Millisecond

// Watch observes the notes directory of a file-backed store and reports
// changes made outside the process (editors, git checkouts) until ctx is
// cancelled. Bursts of events for the same note are coalesced.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("dir", dir))

	pending := make(map[string]fsnotify.Op)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(watchDebounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(watchDebounce)
		}
	}

	flush := func() {
		for id, op := range pending {
			kind := "updated"
			if op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if _, err := os.Stat(filepath.Join(dir, id+noteExt)); os.IsNotExist(err) {
					kind = "deleted"
				}
			}
			logger.Debug("watcher: note changed", slog.String("id", id), slog.String("kind", kind))
			if cb != nil {
				cb(kind, id)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, ok := IDFromPath(filepath.ToSlash(ev.Name))
			if !ok || ev.Op == fsnotify.Chmod {
				continue
			}
			pending[id] |= ev.Op
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
