// Package app assembles the repository, the stores and the backup service
// from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"khoroch/internal/backup"
	"khoroch/internal/cache"
	"khoroch/internal/core"
	"khoroch/internal/log"
	"khoroch/internal/prefs"
	"khoroch/internal/prefs/memory"
	"khoroch/internal/services"
	"khoroch/internal/storage"
)

// App is the wired data layer.
type App struct {
	Repo         *storage.Repository
	Prefs        prefs.Store
	Wallets      *services.WalletStore
	Transactions *services.TransactionStore
	Balance      *services.BalanceStore
	Backup       *backup.Service

	opts   Options
	caches *cache.Manager
	logger *log.Logger
}

// New opens the database (migrating it) and wires the stores. The cache
// cleanup loop runs until ctx is done or Close is called.
func New(ctx context.Context, opts Options, logger *log.Logger) (*App, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	logger = logger.WithComponent(log.ComponentApp)
	if opts.Location == nil {
		opts.Location = time.Local
	}

	repo, err := storage.Open(opts.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	p, err := newPrefs(opts, repo)
	if err != nil {
		repo.Close()
		return nil, err
	}

	backups, err := backup.NewService(repo)
	if err != nil {
		repo.Close()
		return nil, err
	}

	size, ttl := opts.WalletCacheSize, opts.WalletCacheTTL
	if size <= 0 {
		size = services.DefaultWalletCacheSize
	}
	if ttl <= 0 {
		ttl = services.DefaultWalletCacheTTL
	}
	lookups := cache.NewLRUCache[core.Wallet](size, ttl)

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(lookups)
	if opts.CacheCleanupInterval > 0 {
		caches.StartCleanup(ctx, opts.CacheCleanupInterval)
	}

	wallets := services.NewWalletStore(repo, p, lookups)
	balance := services.NewBalanceStore(repo)
	transactions := services.NewTransactionStore(repo, balance, wallets, services.TransactionStoreConfig{
		PageSize: opts.PageSize,
		Location: opts.Location,
	})
	wallets.OnDelete(transactions.WalletDeleted)

	logger.Info("Initialized data layer",
		log.FieldDBPath, opts.SQLiteDBPath,
		"prefs_backend", opts.PrefsBackend.String(),
		"timezone", opts.Location.String())

	return &App{
		Repo:         repo,
		Prefs:        p,
		Wallets:      wallets,
		Transactions: transactions,
		Balance:      balance,
		Backup:       backups,
		opts:         opts,
		caches:       caches,
		logger:       logger,
	}, nil
}

func newPrefs(opts Options, repo *storage.Repository) (prefs.Store, error) {
	switch opts.PrefsBackend {
	case SQLitePrefs:
		return repo.Preferences(), nil
	case MemoryPrefs:
		if opts.PrefsFile != "" {
			return memory.NewFromFile(opts.PrefsFile), nil
		}
		return memory.New(nil), nil
	default:
		return nil, fmt.Errorf("unsupported prefs backend: %s", opts.PrefsBackend)
	}
}

// Location is the zone month boundaries are computed in.
func (a *App) Location() *time.Location {
	return a.opts.Location
}

// BackupDir is where WriteBackup puts files.
func (a *App) BackupDir() string {
	return a.opts.BackupDir
}

// WriteBackup writes a backup file into the configured directory.
func (a *App) WriteBackup(ctx context.Context) (string, error) {
	return a.Backup.WriteFile(ctx, a.opts.BackupDir)
}

// RestoreBackup restores path and drops every in-memory view, which no
// longer matches the tables.
func (a *App) RestoreBackup(ctx context.Context, path string) (backup.Snapshot, error) {
	snap, err := a.Backup.RestoreFile(ctx, path)
	if err != nil {
		return backup.Snapshot{}, err
	}
	a.Wallets.Invalidate()
	a.Transactions.Reset()
	return snap, nil
}

// Close stops the cache cleanup loop and closes the database.
func (a *App) Close() error {
	a.caches.Stop()
	if err := a.Repo.Close(); err != nil {
		return fmt.Errorf("close repository: %w", err)
	}
	a.logger.Info("Data layer closed")
	return nil
}
