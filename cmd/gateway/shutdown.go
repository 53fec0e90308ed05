package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/observability"
)

// run serves until ctx is cancelled or the listener fails, then shuts down
// gracefully.
func (a *application) run(ctx context.Context, configPath string, watch bool) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}
	return a.serve(ctx, ln, configPath, watch)
}

func (a *application) serve(ctx context.Context, ln net.Listener, configPath string, watch bool) error {
	if err := a.admin.Start(); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start admin server: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("gateway listening",
			observability.String("address", ln.Addr().String()),
			observability.String("upstream", a.proxy.Target().String()),
		)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var watcher *config.Watcher
	if watch && configPath != "" {
		watcher = a.startConfigWatcher(ctx, configPath)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("gateway server: %w", err)
		}
	}

	a.shutdown(watcher)
	return runErr
}

// startConfigWatcher starts hot reload. A watcher that cannot start is
// logged and the gateway keeps serving the loaded configuration.
func (a *application) startConfigWatcher(ctx context.Context, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, a.applyConfig,
		config.WithLogger(a.logger),
		config.WithErrorCallback(a.onReloadError),
	)
	if err != nil {
		a.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}
	if err := watcher.Start(ctx, a.config.Load()); err != nil {
		a.logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}
	return watcher
}

// shutdown drains the data plane first, then the admin server and tracer.
func (a *application) shutdown(watcher *config.Watcher) {
	timeout := a.config.Load().Spec.Listener.ShutdownTimeout.Duration()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}
	if err := a.admin.Shutdown(ctx); err != nil {
		a.logger.Error("failed to stop admin server gracefully", observability.Error(err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	a.logger.Info("gateway stopped")
}
