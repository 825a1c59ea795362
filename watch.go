package meshsdf

import (
	"context"
	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	trylock "github.com/subchen/go-trylock/v2"
	"path/filepath"
	"sync/atomic"
	"time"
)

// WatchDebounce is how long Watch waits for file events to settle before rebuilding.
var WatchDebounce = 250 * time.Millisecond

// Watch loads the object from paths and rebuilds it every time one of the files changes, reporting each
// result (or failure) to onUpdate. Rebuilds never overlap. It blocks until ctx is done and
// onUpdate is not called after it returns.
func Watch(ctx context.Context, paths []string, onUpdate func(*Object, error), opts ...Option) error {
	cfg := newConfig(opts)
	watcher, watched, err := watchFiles(paths)
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	lock := trylock.New()
	var stopped atomic.Bool
	rebuild := func() {
		if !lock.TryLock(ctx) {
			return // cancelled while another rebuild was running
		}
		defer lock.Unlock()
		if stopped.Load() {
			return
		}
		obj, err := Load(ctx, paths, opts...)
		if ctx.Err() != nil {
			return
		}
		onUpdate(obj, err)
	}
	defer func() {
		stopped.Store(true)
		lock.Lock() // wait for a running rebuild
		lock.Unlock()
	}()
	debounced := debounce.New(WatchDebounce)

	rebuild()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if abs, err := filepath.Abs(event.Name); err == nil && watched[abs] {
				cfg.logger.Debugw("mesh file changed", "path", event.Name, "op", event.Op.String())
				debounced(rebuild)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.logger.Warnw("file watcher error", "error", err)
		}
	}
}
