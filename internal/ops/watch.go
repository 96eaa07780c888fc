package ops

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Watch reloads the config whenever the file changes and hands the
// result to update. A reload that fails to parse keeps the prior
// config. Watch blocks until the context is done.
//
// The parent directory is watched rather than the file itself so
// editors that replace the file (rename+create) keep triggering.
func Watch(ctx context.Context, path string, update func(Loaded)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "new watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrap(err, "watch dir")
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			loaded, err := Load(path)
			if err != nil {
				logs.Warnf("config reload failed: %v", err)
				continue
			}
			update(loaded)
			logs.Info("config reloaded: ", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logs.Warnf("config watch error: %v", err)
		}
	}
}
