package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Azure management-plane endpoints. Overridable for tests and sovereign clouds.
	ManagementEndpoint string
	LoginEndpoint      string
	BlobEndpointSuffix string
	VaultEndpoint      string

	// Service principal of the engine itself, used to read customer
	// credentials out of the vault.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	RefreshQueueSize    int
	RefreshTimeout      time.Duration
	RefreshLockTTL      time.Duration
	RefreshConcurrency  int
	AutoRefreshInterval time.Duration
	AutoRefreshMaxAge   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "costlens"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "costlens"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		ManagementEndpoint: getenv("AZURE_MANAGEMENT_ENDPOINT", "https://management.azure.com"),
		LoginEndpoint:      getenv("AZURE_LOGIN_ENDPOINT", "https://login.microsoftonline.com"),
		BlobEndpointSuffix: getenv("AZURE_BLOB_ENDPOINT_SUFFIX", "blob.core.windows.net"),
		VaultEndpoint:      getenv("AZURE_VAULT_ENDPOINT", ""),

		AzureTenantID:     getenv("AZURE_TENANT_ID", ""),
		AzureClientID:     getenv("AZURE_CLIENT_ID", ""),
		AzureClientSecret: getenv("AZURE_CLIENT_SECRET", ""),

		RefreshQueueSize:    getenvInt("REFRESH_QUEUE_SIZE", 64),
		RefreshTimeout:      getenvDuration("REFRESH_TIMEOUT", 10*time.Minute),
		RefreshLockTTL:      getenvDuration("REFRESH_LOCK_TTL", 15*time.Minute),
		RefreshConcurrency:  getenvInt("REFRESH_CONCURRENCY", 4),
		AutoRefreshInterval: getenvDuration("AUTO_REFRESH_INTERVAL", time.Hour),
		AutoRefreshMaxAge:   getenvDuration("AUTO_REFRESH_MAX_AGE", 24*time.Hour),
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("[config] invalid integer for %s: %q", key, raw)
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q", key, raw)
		return fallback
	}
	return value
}
