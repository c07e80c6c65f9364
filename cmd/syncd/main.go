package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"resale-tracker/internal/config"
	"resale-tracker/internal/database"
	"resale-tracker/internal/models"
	"resale-tracker/internal/provider"
	"resale-tracker/internal/store"
	syncengine "resale-tracker/internal/sync"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var runOnce = flag.Bool("once", false, "run a single sync and exit")

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Sync Daemon] database connection failed: %v", err)
	}

	st := store.NewGormStore(db)
	syncer := syncengine.NewSynchronizer(st, feedClients(cfg), syncengine.Options{
		MaxRetries:   cfg.ProviderRetries,
		RetryBackoff: cfg.ProviderBackoff,
		SalesWindow:  cfg.SyncSalesWindow,
	})
	runner := syncengine.NewRunner(st, syncer, cfg.SyncWorkers, cfg.SyncCallDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		runSync(ctx, runner)
		return
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SyncSchedule, func() { runSync(ctx, runner) }); err != nil {
		log.Fatalf("[Sync Daemon] bad schedule %q: %v", cfg.SyncSchedule, err)
	}
	scheduler.Start()
	log.Printf("[Sync Daemon] started (PID %d), schedule %q, %d workers, %v between calls",
		os.Getpid(), cfg.SyncSchedule, cfg.SyncWorkers, cfg.SyncCallDelay)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[Sync Daemon] shutdown signal received, stopping")
	cancel()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	log.Println("[Sync Daemon] stopped")
}

func runSync(ctx context.Context, runner *syncengine.Runner) {
	summaries, err := runner.RunAll(ctx)
	if err != nil {
		log.Printf("[Sync Daemon] run failed: %v", err)
		return
	}
	for _, summary := range summaries {
		log.Printf("[Sync Daemon] account %s: %s, %d processed, %d skipped, %d errors",
			summary.AccountID, summary.State, summary.Processed, summary.Skipped, summary.ErrorCount)
	}
}

// feedClients wires the marketplace adapters. Feeds without a
// configured base URL fall back to scripted mocks.
func feedClients(cfg *config.Config) []provider.Client {
	var clients []provider.Client

	if cfg.ProviderABaseURL != "" {
		clients = append(clients, provider.NewRESTClient(
			models.ProviderA, cfg.ProviderABaseURL, cfg.ProviderAAPIKey, "USD", cfg.ProviderTimeout))
	} else {
		log.Println("[Sync Daemon] Provider A feed not configured; using mock feed")
		clients = append(clients, provider.NewMockClient(models.ProviderA))
	}

	if cfg.ProviderBBaseURL != "" {
		clients = append(clients, provider.NewRESTClient(
			models.ProviderB, cfg.ProviderBBaseURL, cfg.ProviderBAPIKey, "EUR", cfg.ProviderTimeout))
	} else {
		log.Println("[Sync Daemon] Provider B feed not configured; using mock feed")
		clients = append(clients, provider.NewMockClient(models.ProviderB))
	}

	return clients
}
