package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	SyncMaxRetries  int
	SyncLockTTL     time.Duration
	SyncCleanupDays int
}

func LoadConfig() (*Config, error) {
	maxRetriesStr := getEnv("SYNC_MAX_RETRIES", "3")
	maxRetries, err := strconv.Atoi(maxRetriesStr)
	if err != nil || maxRetries < 1 {
		return nil, fmt.Errorf("invalid SYNC_MAX_RETRIES: %s", maxRetriesStr)
	}

	lockTTLStr := getEnv("SYNC_LOCK_TTL", "2m")
	lockTTL, err := time.ParseDuration(lockTTLStr)
	if err != nil {
		return nil, errors.New("invalid SYNC_LOCK_TTL format")
	}

	cleanupDaysStr := getEnv("SYNC_CLEANUP_DAYS", "7")
	cleanupDays, err := strconv.Atoi(cleanupDaysStr)
	if err != nil || cleanupDays < 1 {
		return nil, fmt.Errorf("invalid SYNC_CLEANUP_DAYS: %s", cleanupDaysStr)
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		SyncMaxRetries:  maxRetries,
		SyncLockTTL:     lockTTL,
		SyncCleanupDays: cleanupDays,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
