package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/coursemarket-backend/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	a.Start()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("HTTP server stopped", "error", err)
		}
	case <-ctx.Done():
		a.Log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
