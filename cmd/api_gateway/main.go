package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/family-finance-ledger/internal/api_gateway"
	"github.com/family-finance-ledger/internal/api_gateway/service"
	"github.com/family-finance-ledger/internal/config"
	"github.com/family-finance-ledger/internal/data/mongo"
	"github.com/family-finance-ledger/internal/data/postgres"
	"github.com/family-finance-ledger/internal/domain/draft"
	"github.com/family-finance-ledger/internal/logger"
	"github.com/family-finance-ledger/internal/platform/archive"
	"github.com/family-finance-ledger/internal/platform/llm"
	"github.com/family-finance-ledger/internal/platform/persistence"
	"github.com/family-finance-ledger/internal/statement/apply"
	"github.com/family-finance-ledger/internal/statement/drafting"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	// Postgres runs the migrations before the pool is opened
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// The LLM exchange log is optional; without it drafting still works
	var (
		mongoDB *persistence.MongoDB
		audit   draft.ExchangeRepository
	)
	if cfg.Audit.Enabled {
		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}
		exchangeRepo := mongo.NewExchangeRepository(log, mongoDB.Database())
		if err := exchangeRepo.EnsureIndexes(appCtx); err != nil {
			log.Warn("Continuing without exchange index", "error", err)
		}
		audit = exchangeRepo
	}

	llmClient, err := llm.NewClient(appCtx, cfg.LLM, log)
	if err != nil {
		log.Error("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}

	var archiveStore archive.Store
	var gcsStore *archive.GCSStore
	if cfg.Statement.ArchiveBucket != "" {
		gcsStore, err = archive.NewGCSStore(appCtx, log, cfg.Statement.ArchiveBucket)
		if err != nil {
			log.Error("Failed to initialize statement archive", "bucket", cfg.Statement.ArchiveBucket, "error", err)
			os.Exit(1)
		}
		archiveStore = gcsStore
	}

	workerPool, err := service.NewWorkerPool(cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	budgetRepo := postgres.NewBudgetRepository(log, postgresDB)
	draftRepo := postgres.NewDraftRepository(log, postgresDB)
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	categoryRepo := postgres.NewCategoryRepository(log, postgresDB)
	balanceRepo := postgres.NewBalanceEventRepository(log, postgresDB)
	debtRepo := postgres.NewDebtRepository(log, postgresDB)

	orchestrator := apply.NewOrchestrator(postgresDB, apply.Repositories{
		Budgets:      budgetRepo,
		Drafts:       draftRepo,
		Accounts:     accountRepo,
		Categories:   categoryRepo,
		Transactions: postgres.NewTransactionRepository(log, postgresDB),
		Balances:     balanceRepo,
		Debts:        debtRepo,
		Outbox:       postgres.NewOutboxRepository(log, postgresDB),
	}, log)

	draftService := service.NewStatementDraftService(log, service.Dependencies{
		Budgets:    budgetRepo,
		Drafts:     draftRepo,
		Accounts:   accountRepo,
		Categories: categoryRepo,
		Balances:   balanceRepo,
		Debts:      debtRepo,
		Requester:  drafting.NewRequester(llmClient, audit, log),
		Applier:    orchestrator,
		Pool:       workerPool,
		Archive:    archiveStore,
	})

	server := api_gateway.NewServer(log, cfg, draftService)
	log.Info("REST server initialized",
		"llm_provider", llmClient.Provider(),
		"llm_model", llmClient.Model(),
		"audit", cfg.Audit.Enabled,
		"archive", cfg.Statement.ArchiveBucket != "",
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests first so in-flight drafts can finish on the pool
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	var shutdownErr error
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	cancelAppCtx()
	workerPool.Shutdown()
	postgresDB.Close()

	if gcsStore != nil {
		if err := gcsStore.Close(); err != nil {
			log.Error("Error closing statement archive", "error", err)
			shutdownErr = err
		}
	}
	if mongoDB != nil {
		if err := mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
			shutdownErr = err
		}
	}

	if serverErr != nil || shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}
