// Package watch reruns a build whenever the clip files of a collection
// change.
package watch

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the collection must stay quiet before a
// rebuild starts.
const DefaultDebounce = 500 * time.Millisecond

// Collection is what the watcher needs from a clip directory.
type Collection interface {
	Root() string
	IsClipFile(path string) bool
	Fingerprint() (map[string]string, error)
}

// RebuildFunc performs one build. Its error is logged and does not stop
// the watcher.
type RebuildFunc func() error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher rebuilds a collection on change.
type Watcher struct {
	src      Collection
	rebuild  RebuildFunc
	debounce time.Duration
	logger   *slog.Logger
	last     map[string]string
}

// New returns a Watcher for src.
func New(src Collection, rebuild RebuildFunc, opts ...Option) *Watcher {
	w := &Watcher{
		src:      src,
		rebuild:  rebuild,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run builds once, then rebuilds after every settled burst of clip file
// changes until ctx is cancelled. Bursts that leave every clip's content
// unchanged are skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.src.Root()); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("root", w.src.Root()))

	w.check()

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.check()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.src.IsClipFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

// check rebuilds when the collection content differs from the last attempt.
func (w *Watcher) check() {
	fp, err := w.src.Fingerprint()
	if err != nil {
		w.logger.Warn("watcher: fingerprint failed", slog.String("error", err.Error()))
		return
	}
	if w.last != nil && maps.Equal(fp, w.last) {
		w.logger.Debug("watcher: content unchanged")
		return
	}
	w.last = fp
	if err := w.rebuild(); err != nil {
		w.logger.Error("watcher: rebuild failed", slog.String("error", err.Error()))
	}
}
