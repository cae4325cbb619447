package config

import (
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// reloadQuiet coalesces the burst of write events editors emit on save.
const reloadQuiet = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes on disk and hands
// the fresh Config to a callback. Editors that write via rename-and-replace
// are handled by watching the parent directory.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  zerolog.Logger
}

// Watch starts watching path and invokes onReload with each successfully
// loaded configuration. Reload failures are logged and the previous
// configuration stays in effect.
func Watch(path string, onReload func(Config), logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithMessage(err, "creating config watcher")
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, errors.WithMessagef(err, "watching %s", filepath.Dir(path))
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		done:    make(chan struct{}),
		logger:  logger,
	}
	go w.run(onReload)
	return w, nil
}

// Close stops the watcher. Pending debounced reloads may still fire once.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run(onReload func(Config)) {
	defer close(w.done)

	debounced := debounce.New(reloadQuiet)
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed; keeping previous settings")
			return
		}
		w.logger.Info().Str("path", w.path).Msg("configuration reloaded")
		onReload(cfg)
	}

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounced(reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}
