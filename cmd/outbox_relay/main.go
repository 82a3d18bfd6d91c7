package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/family-finance-ledger/internal/config"
	"github.com/family-finance-ledger/internal/data/postgres"
	"github.com/family-finance-ledger/internal/logger"
	"github.com/family-finance-ledger/internal/outbox_relay"
	"github.com/family-finance-ledger/internal/platform/messaging/producers"
	"github.com/family-finance-ledger/internal/platform/persistence"
)

const drainTimeout = 30 * time.Second

func main() {
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("outbox_relay")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Outbox Relay",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"topic", cfg.Kafka.EventsTopic,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewDraftEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize statement events producer", "error", err)
		os.Exit(1)
	}

	// dlqProducer is nil when KAFKA_DLQ_TOPIC is empty; the poller treats that as disabled
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	publisher := outbox_relay.NewEventPublisher(outboxRepo, eventProducer, log)
	poller := outbox_relay.NewPoller(&cfg.Outbox, outboxRepo, publisher, dlqProducer, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	log.Info("Starting graceful shutdown...")
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Outbox poller stopped")
	case <-time.After(drainTimeout):
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing statement events producer", "error", err)
		shutdownErr = err
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	if shutdownErr != nil {
		log.Error("Outbox Relay shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Outbox Relay shutdown completed successfully")
}
