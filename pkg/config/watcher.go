package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay debounces editor write bursts into a single reload.
const reloadDelay = 500 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk.
type Watcher struct {
	logger  zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a config file watcher.
func NewWatcher(logger zerolog.Logger) *Watcher {
	return &Watcher{
		logger: logger.With().Str("component", "config-watcher").Logger(),
	}
}

// Watch starts watching path and calls reloadFn with each successfully
// reloaded configuration. Invalid files are logged and skipped; the
// running configuration stays in effect. Watching stops when ctx is done.
func (w *Watcher) Watch(ctx context.Context, path string, reloadFn func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	go w.processEvents(ctx, path, reloadFn)

	w.logger.Info().Str("path", path).Msg("Started watching config file")
	return nil
}

// processEvents handles file system events and triggers debounced reloads.
func (w *Watcher) processEvents(ctx context.Context, path string, reloadFn func(*Config)) {
	var reloadTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				w.reload(path, reloadFn)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// reload parses and applies the changed file.
func (w *Watcher) reload(path string, reloadFn func(*Config)) {
	cfg, err := Load(path)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to reload config, keeping previous")
		return
	}

	reloadFn(cfg)
	w.logger.Info().
		Int("max_app_records", cfg.MaxAppRecords).
		Str("log_level", cfg.Log.Level).
		Msg("Config reloaded")
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
