package main

import (
	"log"

	"resale-tracker/internal/api"
	"resale-tracker/internal/config"
	"resale-tracker/internal/database"
	"resale-tracker/internal/fees"
	"resale-tracker/internal/fxrates"
	"resale-tracker/internal/models"
	"resale-tracker/internal/pricing"
	"resale-tracker/internal/provider"
	"resale-tracker/internal/store"
	syncengine "resale-tracker/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	st := store.NewGormStore(db)
	rates := fxrates.NewFetcher(cfg.FXRatesURL, cfg.FXBaseCurrency)
	reconciler := pricing.NewReconciler(fees.DefaultCalculator())

	syncer := syncengine.NewSynchronizer(st, feedClients(cfg), syncengine.Options{
		MaxRetries:   cfg.ProviderRetries,
		RetryBackoff: cfg.ProviderBackoff,
		SalesWindow:  cfg.SyncSalesWindow,
	})
	runner := syncengine.NewRunner(st, syncer, cfg.SyncWorkers, cfg.SyncCallDelay)

	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	apiGroup := r.Group("/api")
	api.SetupRoutes(apiGroup, st, reconciler, rates, runner)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// feedClients wires the marketplace adapters. Feeds without a
// configured base URL fall back to scripted mocks so development runs
// work without credentials.
func feedClients(cfg *config.Config) []provider.Client {
	var clients []provider.Client

	if cfg.ProviderABaseURL != "" {
		clients = append(clients, provider.NewRESTClient(
			models.ProviderA, cfg.ProviderABaseURL, cfg.ProviderAAPIKey, "USD", cfg.ProviderTimeout))
	} else {
		log.Println("Provider A feed not configured; using mock feed")
		clients = append(clients, provider.NewMockClient(models.ProviderA))
	}

	if cfg.ProviderBBaseURL != "" {
		clients = append(clients, provider.NewRESTClient(
			models.ProviderB, cfg.ProviderBBaseURL, cfg.ProviderBAPIKey, "EUR", cfg.ProviderTimeout))
	} else {
		log.Println("Provider B feed not configured; using mock feed")
		clients = append(clients, provider.NewMockClient(models.ProviderB))
	}

	return clients
}
