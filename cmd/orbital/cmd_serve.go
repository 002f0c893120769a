package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// ServeCmd serves the chat engine over HTTP
type ServeCmd struct {
	Addr string `default:"127.0.0.1:8080" help:"Listen address"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	logger := createServerLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cli, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	// No write timeout: replies are long-lived event streams.
	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           newRouter(a, logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", c.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Open streams hold their connections, stop them first.
	if err := a.Store.Shutdown(shutdownCtx); err != nil {
		logger.Warn("streams still open", "error", err)
	}
	return srv.Shutdown(shutdownCtx)
}
