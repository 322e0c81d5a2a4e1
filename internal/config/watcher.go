package config

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the loaded .env file. The gateway's configuration is
// immutable for the process lifetime, so the watcher only tells the
// operator that a restart is needed to apply changes.
type Watcher struct {
	envPath  string
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	onChange func() // test hook, also invoked after logging the notice
}

// NewWatcher creates a watcher for the given env file. An empty path means
// nothing was loaded from disk and no watcher is needed.
func NewWatcher(envPath string) (*Watcher, error) {
	if envPath == "" {
		return nil, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		envPath:  envPath,
		watcher:  watcher,
		stopChan: make(chan struct{}),
	}, nil
}

// SetChangeCallback registers a callback fired after a change is observed.
func (w *Watcher) SetChangeCallback(fn func()) {
	w.onChange = fn
}

// Start begins watching. Editors replace files on save, so the parent
// directory is watched and events are filtered by name.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.envPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go w.run()
	log.Debug().Str("file", w.envPath).Msg("Watching env file for changes")
	return nil
}

func (w *Watcher) run() {
	base := filepath.Base(w.envPath)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Warn().
				Str("file", w.envPath).
				Str("op", strings.ToLower(event.Op.String())).
				Msg("Env file changed; configuration is immutable, restart the gateway to apply")
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("Env file watcher error")
		case <-w.stopChan:
			return
		}
	}
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	close(w.stopChan)
	if err := w.watcher.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close env file watcher")
	}
}
