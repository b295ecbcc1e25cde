package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"activ-subscriber/src/config"
	"activ-subscriber/src/logger"
	"activ-subscriber/src/subscriber"
	"activ-subscriber/src/utils"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	envFile := flag.String("env", "", "path to .env file (defaults to ./.env when present)")
	flag.Parse()

	// Load config: defaults, YAML, .env, ACTIV_* variables
	cfg, err := config.NewConfig(*configPath, *envFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}, cfg.Name)

	appLogger.Info("Environment variables set:")
	appLogger.Info("  Host .......... %s", cfg.Session.Host)
	appLogger.Info("  User ID ....... %s", cfg.Session.UserID)
	appLogger.Info("  Password ...... %s", utils.MaskSecret(cfg.Session.Password))

	if err := safeRun(cfg, appLogger, run); err != nil {
		appLogger.Error("Error: %v", err)
		appLogger.Close()
		os.Exit(1)
	}
	appLogger.Close()
}

// -----------------------------------------------------------------------------

// safeRun turns a panic escaping fn into a logged error
func safeRun(cfg *config.Config, appLogger *logger.Logger, fn func(*config.Config, *logger.Logger) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			appLogger.ErrorWithStack("unhandled panic: %v", r)
			err = fmt.Errorf("unhandled panic: %v", r)
		}
	}()
	return fn(cfg, appLogger)
}

// -----------------------------------------------------------------------------

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub := subscriber.NewSubscriber(cfg, appLogger)
	// exactly one disconnect, whatever happens below
	defer sub.Stop()

	if err := sub.Start(ctx); err != nil {
		return err
	}

	appLogger.Info("subscribed to %s. Press Ctrl+C to stop.", cfg.Subscription.Symbol)
	sub.Wait(ctx)

	appLogger.Info("shutting down...")
	return sub.Stop()
}
