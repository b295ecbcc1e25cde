package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"activ-subscriber/src/config"
	"activ-subscriber/src/factories"
	"activ-subscriber/src/handlers"
	"activ-subscriber/src/logger"
)

// Prints every message of one subscription to stdout, without log prefixes,
// and hands control to the session loop until interrupted.
func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	envFile := flag.String("env", "", "path to .env file (defaults to ./.env when present)")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath, *envFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// failures inside the handlers still go to stderr
	errLogger := logger.NewWriterLogger(os.Stderr, cfg.Name, logger.ParseLevel(cfg.LogLevel))

	if err := run(cfg, errLogger); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

func run(cfg *config.Config, errLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := factories.NewSessionFactory(cfg, errLogger)

	sess, err := factory.CreateSession(handlers.NewPrintSessionHandler(os.Stdout, errLogger))
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	if err := sess.Connect(ctx, cfg.Session.ConnectTimeout); err != nil {
		return err
	}

	symbol := cfg.Subscription.Symbol
	handler := handlers.NewPrintSubscriptionHandler(os.Stdout, errLogger)
	if _, err := sess.Subscribe(symbol, handler, cfg.SubscribeOptions()); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", symbol, err)
	}

	fmt.Printf("Subscribed to %s\n", symbol)
	return sess.Run(ctx)
}
