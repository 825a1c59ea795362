//go:build freebsd || openbsd || netbsd || dragonfly || darwin || windows || linux || solaris
// +build freebsd openbsd netbsd dragonfly darwin windows linux solaris

package meshsdf

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"path/filepath"
)

// watchFiles starts watching the directories of paths and returns the absolute paths to react to.
// Editors often replace files instead of writing them, so the files themselves are not watched.
func watchFiles(paths []string) (*fsnotify.Watcher, map[string]bool, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating file watcher")
	}
	files := make(map[string]bool, len(paths))
	dirs := map[string]bool{}
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, multierr.Append(errors.Wrapf(err, "resolving %s", path), watcher.Close())
		}
		files[abs] = true
		if dir := filepath.Dir(abs); !dirs[dir] {
			dirs[dir] = true
			if err = watcher.Add(dir); err != nil {
				return nil, nil, multierr.Append(errors.Wrapf(err, "watching %s", path), watcher.Close())
			}
		}
	}
	return watcher, files, nil
}
