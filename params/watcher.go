package params

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/scopehal/halbus/contracts"
)

// Sender delivers messages into the bus. *messaging.Dispatcher satisfies it.
type Sender interface {
	Send(msg *contracts.Message) error
}

// Watcher watches a parameters file and publishes a "new parameters file"
// message, with the file path as payload, whenever the file is rewritten.
type Watcher struct {
	path     string
	name     string
	sender   Sender
	debounce time.Duration
	logger   *slog.Logger

	fsWatcher *fsnotify.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WatcherOption configures the Watcher.
type WatcherOption func(*Watcher)

// WithWatcherName sets the module name the published messages carry as their
// source.
func WithWatcherName(name string) WatcherOption {
	return func(w *Watcher) {
		if name != "" {
			w.name = name
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets how long to coalesce bursts of file events before
// publishing. Editors typically produce several writes per save.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for the given parameters file. The file must
// be loadable when the watcher is created.
func NewWatcher(path string, sender Sender, options ...WatcherOption) (*Watcher, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}

	if _, err := Load(path); err != nil {
		return nil, fmt.Errorf("failed to load initial parameters: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file system watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		path:      path,
		name:      "parameters watcher",
		sender:    sender,
		debounce:  100 * time.Millisecond,
		logger:    slog.Default(),
		fsWatcher: fsWatcher,
		ctx:       ctx,
		cancel:    cancel,
	}

	for _, opt := range options {
		opt(w)
	}

	return w, nil
}

// Name returns the watcher's module name.
func (w *Watcher) Name() string {
	return w.name
}

// Start begins watching the parameters file.
func (w *Watcher) Start() error {
	// Watch the directory, not the file: editors that replace the file on
	// save would otherwise drop the watch.
	if err := w.fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch parameters file: %w", err)
	}

	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.publish()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("parameters watch error", "path", w.path, "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) publish() {
	msg := contracts.NewMessage(contracts.TypeNewParametersFile, w,
		contracts.WithData(w.path),
	)
	if err := w.sender.Send(msg); err != nil {
		w.logger.Error("failed to publish parameters change",
			"path", w.path,
			"error", err,
		)
		return
	}
	w.logger.Info("parameters file changed", "path", w.path)
}
