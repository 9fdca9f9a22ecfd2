package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events a single save produces.
const reloadDelay = 50 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes each
// valid result to onChange. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// replace the file by rename are seen too. A reload that fails to parse or
// validate is logged and dropped; the caller keeps its current config.
// Saves that leave the bytes unchanged are ignored.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("server config: watch %q: %w", path, err)
	}
	last, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("server config: watch %q: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("server config: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("server config: watch %q: %w", filepath.Dir(abs), err)
	}
	slog.Info("config: watching for changes", "path", abs)

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDelay)

		case <-timer.C:
			data, err := os.ReadFile(abs)
			if err != nil {
				// A rename save removes the file briefly; the Create that
				// follows triggers another attempt.
				slog.Debug("config: file not readable yet", "path", abs, "err", err)
				continue
			}
			if bytes.Equal(data, last) {
				continue
			}
			cfg, err := Parse(data)
			if err != nil {
				slog.Error("config: reload rejected, keeping current settings", "path", abs, "err", err)
				continue
			}
			last = data
			slog.Info("config: reloaded", "path", abs)
			onChange(cfg)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}
