// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Base directory for all databases (always absolute)
	Port         int
	LogLevel     string
	LogPretty    bool
	DevMode      bool
	StartingCash float64 // Cash credited to every new account

	Prices    PriceConfig
	Schedules ScheduleConfig
	Backup    *BackupConfig
}

// PriceConfig controls the price oracle and its cache.
type PriceConfig struct {
	CacheTTL   time.Duration
	MaxRetries int
	Timeout    time.Duration // per oracle call
}

// ScheduleConfig holds cron expressions for background jobs.
// Expressions use the seconds field (cron.WithSeconds).
type ScheduleConfig struct {
	SnapshotCapture   string
	PriceCacheCleanup string
	DatabaseCheck     string
	Maintenance       string
	Backup            string
}

// BackupConfig holds S3-compatible backup configuration
type BackupConfig struct {
	Enabled         bool
	Bucket          string
	Prefix          string
	Endpoint        string // Custom endpoint (Cloudflare R2, MinIO); empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // 0 keeps every backup
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("PAPERTRADE_DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:      absDataDir,
		Port:         getEnvAsInt("PORT", 8001),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", true),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		StartingCash: getEnvAsFloat("STARTING_CASH", 10000),
		Prices: PriceConfig{
			CacheTTL:   getEnvAsDuration("PRICE_CACHE_TTL", 10*time.Minute),
			MaxRetries: getEnvAsInt("PRICE_MAX_RETRIES", 3),
			Timeout:    getEnvAsDuration("PRICE_TIMEOUT", 10*time.Second),
		},
		Schedules: ScheduleConfig{
			// After the US close, weekdays
			SnapshotCapture:   getEnv("SNAPSHOT_SCHEDULE", "0 30 22 * * MON-FRI"),
			PriceCacheCleanup: getEnv("PRICE_CACHE_CLEANUP_SCHEDULE", "@daily"),
			DatabaseCheck:     getEnv("DATABASE_CHECK_SCHEDULE", "0 0 */6 * * *"),
			Maintenance:       getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * SUN"),
			Backup:            getEnv("BACKUP_SCHEDULE", "@daily"),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Prefix:          getEnv("BACKUP_PREFIX", "papertrade/"),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.StartingCash < 0 {
		return fmt.Errorf("starting cash must not be negative, got %.2f", c.StartingCash)
	}
	if c.Prices.CacheTTL <= 0 {
		return fmt.Errorf("price cache TTL must be positive, got %s", c.Prices.CacheTTL)
	}
	if c.Prices.Timeout <= 0 {
		return fmt.Errorf("price timeout must be positive, got %s", c.Prices.Timeout)
	}
	if c.Backup != nil && c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup retention must not be negative, got %d", c.Backup.RetentionDays)
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
