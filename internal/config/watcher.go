package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounce window for editors that write settings in multiple events
const watchDebounce = 250 * time.Millisecond

// Watcher watches the settings file and reports model-name changes.
type Watcher struct {
	path    string
	log     zerolog.Logger
	onModel func(router, annotate string)

	lastRouter   string
	lastAnnotate string
}

// NewWatcher creates a watcher for the settings file at path. onModel is
// invoked whenever the configured model names change on disk.
func NewWatcher(path string, log zerolog.Logger, onModel func(router, annotate string)) *Watcher {
	return &Watcher{path: path, log: log.With().Str("component", "config-watch").Logger(), onModel: onModel}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: editors replace the file on save, which would
	// drop a watch on the file itself.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	if s, err := Load(w.path); err == nil {
		w.lastRouter, w.lastAnnotate = s.RouterModel, s.AnnotateModel
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("settings watch error")
		case <-fire:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Msg("settings reload failed")
		return
	}
	if s.RouterModel == w.lastRouter && s.AnnotateModel == w.lastAnnotate {
		return
	}
	w.lastRouter, w.lastAnnotate = s.RouterModel, s.AnnotateModel
	w.log.Info().Str("router", s.RouterModel).Str("annotate", s.AnnotateModel).Msg("model configuration changed")
	if w.onModel != nil {
		w.onModel(s.RouterModel, s.AnnotateModel)
	}
}
