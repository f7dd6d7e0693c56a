package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"khoroch/internal/log"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// Logging
	LogLevel string

	// Month boundaries are computed in this IANA zone; "Local" uses the host's.
	Timezone string

	// Transaction store
	PageSize int

	// Wallet lookup cache
	WalletCacheSize      int
	WalletCacheTTL       time.Duration
	CacheCleanupInterval time.Duration

	// Preferences backend selection
	PrefsBackend string
	PrefsFile    string

	// Backups
	BackupDir string
}

func Load() *Config {
	cfg := &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/khoroch.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Timezone:     getEnv("TIMEZONE", "Local"),

		PageSize: getEnvInt("PAGE_SIZE", 10),

		WalletCacheSize:      getEnvInt("WALLET_CACHE_SIZE", 128),
		WalletCacheTTL:       getEnvDuration("WALLET_CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", time.Minute),

		PrefsBackend: getEnv("PREFS_BACKEND", "sqlite"),
		PrefsFile:    getEnv("PREFS_FILE", ""),

		BackupDir: getEnv("BACKUP_DIR", "./data/backups"),
	}

	return cfg
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.PageSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be at least 1", c.PageSize))
	} else if c.PageSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be at most 1000", c.PageSize))
	}

	if c.WalletCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid wallet cache size %d: must be at least 1", c.WalletCacheSize))
	}
	if c.WalletCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid wallet cache TTL %v: must be at least 1 second", c.WalletCacheTTL))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}

	// Validate preferences backend
	validBackends := []string{"sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.PrefsBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid prefs backend '%s': must be one of %v", c.PrefsBackend, validBackends))
	}
	if c.PrefsBackend == "memory" && c.PrefsFile != "" {
		if _, err := os.Stat(c.PrefsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("preferences file does not exist: %s", c.PrefsFile))
		}
	}

	if c.BackupDir == "" {
		errors = append(errors, "backup directory cannot be empty")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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
