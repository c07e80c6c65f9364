package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// Upstream marketplace feeds
	ProviderABaseURL string
	ProviderAAPIKey  string
	ProviderBBaseURL string
	ProviderBAPIKey  string

	// FX rate endpoint for converting provider-native currencies
	FXRatesURL     string
	FXBaseCurrency string

	// Sync tuning
	SyncWorkers     int
	SyncCallDelay   time.Duration // fixed inter-call delay per provider
	SyncSchedule    string        // cron spec for the sync daemon
	SyncSalesWindow time.Duration // how far back to pull sales history
	ProviderTimeout time.Duration
	ProviderRetries int
	ProviderBackoff time.Duration
}

func Load() *Config {
	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "root:resale@tcp(127.0.0.1:3306)/resale_tracker?charset=utf8mb4&parseTime=True&loc=Local"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		ProviderABaseURL: getEnv("PROVIDER_A_BASE_URL", ""),
		ProviderAAPIKey:  getEnv("PROVIDER_A_API_KEY", ""),
		ProviderBBaseURL: getEnv("PROVIDER_B_BASE_URL", ""),
		ProviderBAPIKey:  getEnv("PROVIDER_B_API_KEY", ""),

		FXRatesURL:     getEnv("FX_RATES_URL", ""),
		FXBaseCurrency: getEnv("FX_BASE_CURRENCY", "USD"),

		SyncWorkers:     getEnvInt("SYNC_WORKERS", 4),
		SyncCallDelay:   getEnvDuration("SYNC_CALL_DELAY", 1600*time.Millisecond),
		SyncSchedule:    getEnv("SYNC_SCHEDULE", "@every 30m"),
		SyncSalesWindow: getEnvDuration("SYNC_SALES_WINDOW", 30*24*time.Hour),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRetries: getEnvInt("PROVIDER_RETRIES", 3),
		ProviderBackoff: getEnvDuration("PROVIDER_BACKOFF", 500*time.Millisecond),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
