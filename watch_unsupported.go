//go:build !(freebsd || openbsd || netbsd || dragonfly || darwin || windows || linux || solaris)
// +build !freebsd,!openbsd,!netbsd,!dragonfly,!darwin,!windows,!linux,!solaris

package meshsdf

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

func watchFiles([]string) (*fsnotify.Watcher, map[string]bool, error) {
	return nil, nil, errors.New("file watching is not supported on this platform")
}
