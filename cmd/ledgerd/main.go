// Command ledgerd serves the MVT token ledger over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/token_ledger/internal/app/runtime"
	"github.com/R3E-Network/token_ledger/internal/config"
	"github.com/R3E-Network/token_ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("ledgerd").WithError(err).Fatal("failed to load configuration")
	}
	log := logger.New(cfg.Logging.Logger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := runtime.NewApplication(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise ledger")
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		log.WithError(runErr).Error("server stopped")
	}

	log.Info("shutting down")
	if err := app.Shutdown(context.Background()); err != nil {
		log.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
	if runErr != nil {
		os.Exit(1)
	}
}
