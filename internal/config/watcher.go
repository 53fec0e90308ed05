package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// DefaultDebounceDelay coalesces the burst of events editors and
// ConfigMap updates produce for one logical change.
const DefaultDebounceDelay = 100 * time.Millisecond

// ErrWatcherRunning is returned by Start on a watcher that is already running.
var ErrWatcherRunning = errors.New("config watcher already running")

// ApplyFunc receives every configuration that loaded and validated. A
// non-nil error rejects the configuration and keeps the previous one.
type ApplyFunc func(*GatewayConfig) error

// ErrorCallback is called when a reload fails.
type ErrorCallback func(error)

// Watcher reloads the gateway configuration when its file changes.
type Watcher struct {
	path          string
	fs            *fsnotify.Watcher
	apply         ApplyFunc
	onError       ErrorCallback
	logger        observability.Logger
	debounceDelay time.Duration

	mu         sync.RWMutex
	lastConfig *GatewayConfig
	running    bool
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay for file changes.
func WithDebounceDelay(delay time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = delay
	}
}

// WithLogger sets the logger for the watcher.
func WithLogger(logger observability.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithErrorCallback sets the callback invoked when a reload fails.
func WithErrorCallback(callback ErrorCallback) WatcherOption {
	return func(w *Watcher) {
		w.onError = callback
	}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, apply ApplyFunc, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:          absPath,
		fs:            fsWatcher,
		apply:         apply,
		logger:        observability.NopLogger(),
		debounceDelay: DefaultDebounceDelay,
		stopCh:        make(chan struct{}),
		stoppedCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the directory holding the configuration file. Watching the
// directory rather than the file survives atomic renames and symlink swaps.
// The initial configuration is expected to have been applied by the caller;
// pass it as initial so GetLastConfig has a value before the first reload.
func (w *Watcher) Start(ctx context.Context, initial *GatewayConfig) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWatcherRunning
	}
	w.running = true
	w.lastConfig = initial
	w.mu.Unlock()

	if err := w.fs.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("watching configuration file",
		observability.String("path", w.path),
		observability.Duration("debounce", w.debounceDelay),
	)

	go w.loop(ctx)
	return nil
}

// Stop stops watching and releases the underlying file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.fs.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.stoppedCh
	return w.fs.Close()
}

// GetLastConfig returns the last configuration that was applied.
func (w *Watcher) GetLastConfig() *GatewayConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastConfig
}

// ForceReload loads, validates and applies the configuration immediately.
func (w *Watcher) ForceReload() error {
	return w.reload()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stoppedCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("config watcher stopped by context")
			return

		case <-w.stopCh:
			w.logger.Debug("config watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("config file event",
				observability.String("path", event.Name),
				observability.String("op", event.Op.String()),
			)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounceDelay)
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.reload(); err != nil {
				w.fail(err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.fail(fmt.Errorf("file watcher: %w", err))
		}
	}
}

// relevant reports whether event may have changed the configuration file.
// Kubernetes ConfigMap mounts update a "..data" symlink in the same
// directory, so writes to it count too.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == w.path || filepath.Base(name) == "..data"
}

func (w *Watcher) reload() error {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return err
	}
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if w.apply != nil {
		if err := w.apply(cfg); err != nil {
			return fmt.Errorf("failed to apply configuration: %w", err)
		}
	}

	w.mu.Lock()
	w.lastConfig = cfg
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		observability.String("path", w.path),
		observability.Int("routes", len(cfg.Spec.Routes)),
	)
	return nil
}

func (w *Watcher) fail(err error) {
	w.logger.Error("configuration reload failed, keeping previous configuration",
		observability.String("path", w.path),
		observability.Error(err),
	)
	if w.onError != nil {
		w.onError(err)
	}
}
