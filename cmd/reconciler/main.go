package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/reconciliation"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/config"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/logger"
	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Service: "reconciler", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("reconciler stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	creds := &reconciliation.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.ReconciliationMigrationsPath,
	}

	store, err := reconciliation.NewStore(ctx, creds)
	if err != nil {
		return fmt.Errorf("connect reconciliation store: %w", err)
	}
	defer store.Close()

	if err := store.RunMigrations(creds); err != nil {
		return fmt.Errorf("migrate reconciliation store: %w", err)
	}
	log.Info("reconciliation migrations completed")

	consumer := reconciliation.NewConsumer(store, log, cfg.Kafka...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Run(ctx)
	}()
	log.Info("reconciler consuming", "topic", reconciliation.Topic, "brokers", cfg.Kafka)

	<-ctx.Done()
	log.Info("shutting down reconciler")

	select {
	case <-done:
		log.Info("consumer stopped cleanly")
	case <-time.After(cfg.ShutdownTimeout):
		log.Warn("consumer didn't stop in time")
	}

	consumer.Close()
	return nil
}
