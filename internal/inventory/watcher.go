package inventory

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher calls onChange after the inventory file has been written and then
// left alone for the debounce interval.
type Watcher struct {
	log      zerolog.Logger
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)
}

func NewWatcher(log zerolog.Logger, path string, debounce time.Duration, onChange func(ctx context.Context)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{log: log, path: path, debounce: debounce, onChange: onChange}
}

// Watch blocks until ctx is done. The parent directory is watched so editors
// that replace the file by rename are still seen.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	w.log.Info().Str("path", abs).Msg("watching inventory")

	// Change callbacks run on this goroutine so two runs never overlap.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("inventory watcher error")

		case <-timer.C:
			w.log.Info().Str("path", abs).Msg("inventory changed")
			w.onChange(ctx)
		}
	}
}
