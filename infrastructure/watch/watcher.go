// Package watch reloads a machine file whenever it changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
	"github.com/felixgeelhaar/tracetm/infrastructure/machinefile"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// Update is one reload attempt. Exactly one of Machine and Err is set.
type Update struct {
	Machine *machine.Machine
	Err     error
}

// Watcher delivers reloaded machines for one file.
type Watcher struct {
	path     string
	loader   *machinefile.Loader
	debounce time.Duration
	fs       *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLoader sets the machine loader.
func WithLoader(l *machinefile.Loader) Option {
	return func(w *Watcher) {
		w.loader = l
	}
}

// New starts watching path. The parent directory is watched so that
// editors which replace the file by rename are still seen.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		loader:   machinefile.NewLoader(),
		debounce: DefaultDebounce,
		fs:       fs,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run delivers updates until ctx is done, then closes the channel and the
// underlying watcher. It must be called once.
func (w *Watcher) Run(ctx context.Context) <-chan Update {
	updates := make(chan Update, 1)

	go func() {
		defer close(updates)
		defer func() { _ = w.fs.Close() }()

		timer := time.NewTimer(w.debounce)
		timer.Stop()
		defer timer.Stop()

		send := func(u Update) bool {
			select {
			case updates <- u:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				timer.Reset(w.debounce)

			case <-timer.C:
				m, err := w.loader.LoadFile(w.path)
				if err != nil {
					logging.Warn().
						Add(logging.Component("watch")).
						Add(logging.Path(w.path)).
						Add(logging.ErrorField(err)).
						Msg("machine reload failed")
					if !send(Update{Err: err}) {
						return
					}
					continue
				}
				logging.Info().
					Add(logging.Component("watch")).
					Add(logging.Machine(m.Name)).
					Add(logging.Path(w.path)).
					Msg("machine reloaded")
				if !send(Update{Machine: m}) {
					return
				}

			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				if !send(Update{Err: err}) {
					return
				}
			}
		}
	}()

	return updates
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}
