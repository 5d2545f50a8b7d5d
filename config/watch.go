package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 50 * time.Millisecond

// Watch reloads the config file at path whenever it changes and hands every valid result to onChange.
// Invalid files are reported to onError and otherwise ignored. The directory is watched instead of
// the file so editors that replace the file on save are picked up too. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(Config), onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}

			pending = time.After(watchDebounce)

		case <-pending:
			pending = nil

			cfg, err := Load(target)
			if err != nil {
				onError(err)
				continue
			}

			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			onError(err)
		}
	}
}
