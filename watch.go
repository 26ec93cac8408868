package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Editors often write a file in several steps; changes closer together
// than this trigger a single conversion.
const watchDebounce = 250 * time.Millisecond

// watchAndConvert calls convert every time path is written or recreated,
// until ctx is done. Conversion errors are logged and watching continues.
func watchAndConvert(ctx context.Context, path string, convert func(context.Context) error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Watch the directory: editors that save by rename replace the inode.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("unable to watch %s: %w", abs, err)
	}
	log.Info("Watching for changes", "path", abs)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped watching", "path", abs)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				log.Debug("File changed", "path", abs, "op", event.Op)
				pending = time.After(watchDebounce)
			}

		case <-pending:
			pending = nil
			if err := convert(ctx); err != nil {
				log.Error("Conversion failed", "input", abs, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("Watcher error", "error", err)
		}
	}
}
