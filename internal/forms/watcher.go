package forms

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads a Registry whenever a definition file in its directory changes.
type Watcher struct {
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
	reloaded chan struct{}
}

// NewWatcher prepares a watcher on the registry directory.
func NewWatcher(registry *Registry, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		registry: registry,
		watcher:  fsw,
		debounce: debounce,
		logger:   logger,
		reloaded: make(chan struct{}, 1),
	}, nil
}

// Reloaded signals after each successful reload. Signals are coalesced.
func (w *Watcher) Reloaded() <-chan struct{} {
	return w.reloaded
}

// Start begins watching until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.registry.Dir()); err != nil {
		return err
	}
	go w.loop(ctx)
	w.logger.Info("watching form definitions", zap.String("dir", w.registry.Dir()))
	return nil
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isDefinitionFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending = true
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("form definition watcher error", zap.Error(err))
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			if err := w.registry.Reload(); err != nil {
				w.logger.Warn("form definitions reload failed, keeping previous set", zap.Error(err))
				continue
			}
			select {
			case w.reloaded <- struct{}{}:
			default:
			}
		}
	}
}
