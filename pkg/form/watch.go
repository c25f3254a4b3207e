package form

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDefinition calls fn with the parsed definition at path every time the
// file changes, coalescing bursts of events within debounce. It blocks until
// ctx is done. The parent directory is watched so editors that replace the
// file on save keep triggering reloads.
func WatchDefinition(ctx context.Context, path string, debounce time.Duration, log *slog.Logger, fn func(*Definition, error)) error {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	ticker := time.NewTicker(debounce)
	defer ticker.Stop()
	pending := false
	for {
		select {
		case ev := <-fw.Events:
			if filepath.Clean(ev.Name) != abs || ev.Op == fsnotify.Chmod {
				continue
			}
			pending = true
		case err := <-fw.Errors:
			if err != nil {
				log.Warn("fsnotify error", "err", err)
			}
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			def, err := LoadDefinition(abs)
			if err != nil {
				log.Warn("skip invalid definition", "path", abs, "err", err)
			}
			fn(def, err)
		case <-ctx.Done():
			return nil
		}
	}
}
