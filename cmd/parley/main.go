package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parley/internal/app"
	"parley/internal/config"
)

func main() {
	log := buildLogger(os.Getenv("PARLEY_ENV") == "dev")
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg := config.LoadConfigWithPrecedence(os.Getenv("PARLEY_CONFIG_FILE"))

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := application.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	appErrCh := make(chan error, 1)
	go func() {
		appErrCh <- application.Wait()
	}()

	select {
	case err := <-appErrCh:
		// A server exited on its own; shut the rest down.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stopErr := application.Stop(shutdownCtx)
		if err != nil {
			return fmt.Errorf("application error: %w", err)
		}
		return stopErr
	case sig := <-signalCh:
		log.Info("received signal, shutting down gracefully", zap.Stringer("signal", sig))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := application.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	}
}

// buildLogger selects the console development encoder or production JSON.
func buildLogger(development bool) *zap.Logger {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
		return zap.Must(cfg.Build())
	}
	return zap.Must(zap.NewProductionConfig().Build())
}
