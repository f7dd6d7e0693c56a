package app

import (
	"fmt"
	"time"

	"khoroch/internal/config"
)

// PrefsBackend selects where key-value preferences are kept.
type PrefsBackend string

const (
	SQLitePrefs PrefsBackend = "sqlite"
	MemoryPrefs PrefsBackend = "memory"
)

// String implements fmt.Stringer
func (b PrefsBackend) String() string {
	return string(b)
}

// IsValid returns true if the backend type is valid
func (b PrefsBackend) IsValid() bool {
	switch b {
	case SQLitePrefs, MemoryPrefs:
		return true
	default:
		return false
	}
}

// Options holds everything New needs to assemble the stores.
type Options struct {
	SQLiteDBPath string
	Location     *time.Location
	PageSize     int

	WalletCacheSize      int
	WalletCacheTTL       time.Duration
	CacheCleanupInterval time.Duration

	PrefsBackend PrefsBackend
	PrefsFile    string // seeds the memory backend

	BackupDir string
}

// FromAppConfig converts the application config to factory options
func FromAppConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, fmt.Errorf("app config is nil")
	}

	backend := PrefsBackend(cfg.PrefsBackend)
	if !backend.IsValid() {
		return Options{}, fmt.Errorf("invalid prefs backend in config: %s", cfg.PrefsBackend)
	}

	loc, err := cfg.Location()
	if err != nil {
		return Options{}, fmt.Errorf("load timezone: %w", err)
	}

	return Options{
		SQLiteDBPath:         cfg.SQLiteDBPath,
		Location:             loc,
		PageSize:             cfg.PageSize,
		WalletCacheSize:      cfg.WalletCacheSize,
		WalletCacheTTL:       cfg.WalletCacheTTL,
		CacheCleanupInterval: cfg.CacheCleanupInterval,
		PrefsBackend:         backend,
		PrefsFile:            cfg.PrefsFile,
		BackupDir:            cfg.BackupDir,
	}, nil
}

// Validate validates the options
func (o Options) Validate() error {
	if !o.PrefsBackend.IsValid() {
		return fmt.Errorf("invalid prefs backend: %s", o.PrefsBackend)
	}
	if o.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	return nil
}
