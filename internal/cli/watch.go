package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is how long Watch waits for a burst of file events to end
// before rebuilding. MaxDebounceWait bounds the wait from the first event of
// a burst, so a file that keeps changing still gets rebuilt.
var (
	DebounceDelay   = 100 * time.Millisecond
	MaxDebounceWait = time.Second
)

// debounce returns how long to wait after an event at now in a burst that
// started at first.
func debounce(first, now time.Time) time.Duration {
	left := MaxDebounceWait - now.Sub(first)
	if left < 0 {
		return 0
	}
	return min(DebounceDelay, left)
}

// Watch calls rebuild whenever a package document or config file under
// paths is created, written, removed or renamed. It returns when ctx is
// done. Directories are watched rather than files, so editors that replace
// a file on save keep triggering rebuilds.
func Watch(ctx context.Context, paths []string, rebuild func(), formatter *OutputFormatter) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "starting watcher", err)
	}
	defer w.Close()

	dirs, err := watchDirs(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "watching sources", err)
	}
	for _, d := range dirs {
		if err := w.Add(d); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("watching %s", d), err)
		}
	}
	fmt.Fprintf(formatter.GetErrWriter(), "Watching %d director(ies). Press Ctrl-C to stop.\n", len(dirs))

	var timer *time.Timer
	var fire <-chan time.Time
	var first time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			slog.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			now := time.Now()
			if fire == nil {
				first = now
			}
			if timer == nil {
				timer = time.NewTimer(debounce(first, now))
			} else {
				timer.Reset(debounce(first, now))
			}
			fire = timer.C

		case <-fire:
			fire = nil
			formatter.VerboseLog("Rebuilding")
			rebuild()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if filepath.Base(ev.Name) == ConfigFile {
		return true
	}
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		return ev.Op.Has(fsnotify.Create)
	}
	return isSource(ev.Name)
}

// watchDirs returns the directories to watch for paths: each directory
// path with its subdirectories, and the parent of each file path.
func watchDirs(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Dir(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
