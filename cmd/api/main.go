package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cgl-backend/internal/app"
	"cgl-backend/internal/config"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rt, err := app.Build(app.Options{Config: cfg, Release: version})
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer rt.Close()

	logger := rt.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the gate so the first request does not pay for the connect. A
	// failure is retried by the next gated request.
	go func() {
		if err := rt.Gate.EnsureReady(ctx); err != nil {
			logger.Warn("db_warmup_failed", map[string]any{"error": err.Error()})
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           rt.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": server.Addr, "version": version})
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown", map[string]any{"timeout_ms": cfg.ShutdownTimeout.Milliseconds()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		return err
	}

	return nil
}
