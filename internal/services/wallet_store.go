package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"khoroch/internal/cache"
	"khoroch/internal/core"
	"khoroch/internal/log"
	"khoroch/internal/prefs"
	"khoroch/internal/storage"
)

// FallbackDefaultWalletID is used when no default wallet preference is set.
const FallbackDefaultWalletID int64 = 1

// Lookup cache defaults.
const (
	DefaultWalletCacheSize = 128
	DefaultWalletCacheTTL  = 5 * time.Minute
)

type (
	// NewWallet is the input to AddWallet. Type defaults to Cash and
	// InitialAmount to zero.
	NewWallet struct {
		Name          string
		Avatar        *string
		Type          string
		Icon          *string
		Color         *string
		InitialAmount decimal.Decimal
	}

	// WalletPatch changes only the fields that are set.
	WalletPatch struct {
		Name          *string
		Avatar        *string
		Type          *string
		Icon          *string
		Color         *string
		SortOrder     *int64
		InitialAmount *decimal.Decimal
		IsActive      *bool
		ClearAvatar   bool
		ClearIcon     bool
		ClearColor    bool
	}
)

// WalletStore owns the in-memory wallet list and the default-wallet
// preference. Point lookups go through an LRU cache.
type WalletStore struct {
	repo    *storage.Repository
	prefs   prefs.Store
	lookups *cache.LRUCache[core.Wallet]

	mu       sync.RWMutex
	wallets  []core.Wallet
	onDelete []func(context.Context, int64)
}

// NewWalletStore wires the store. A nil preference store falls back to the
// SQLite preferences table, a nil cache to the default size and TTL.
func NewWalletStore(repo *storage.Repository, p prefs.Store, lookups *cache.LRUCache[core.Wallet]) *WalletStore {
	if p == nil {
		p = repo.Preferences()
	}
	if lookups == nil {
		lookups = cache.NewLRUCache[core.Wallet](DefaultWalletCacheSize, DefaultWalletCacheTTL)
	}
	return &WalletStore{
		repo:    repo,
		prefs:   p,
		lookups: lookups,
	}
}

func walletKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// GetWallets reloads every wallet and replaces the in-memory list.
func (s *WalletStore) GetWallets(ctx context.Context) ([]core.Wallet, error) {
	wallets, err := s.repo.Queries().ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("get wallets: %w", err)
	}

	s.mu.Lock()
	s.wallets = wallets
	s.mu.Unlock()

	s.lookups.Purge()
	for _, w := range wallets {
		s.lookups.Set(walletKey(w.ID), w)
	}
	return cloneWallets(wallets), nil
}

// AddWallet inserts a wallet whose current balance starts at its initial
// amount, and appends it to the list.
func (s *WalletStore) AddWallet(ctx context.Context, in NewWallet) (core.Wallet, error) {
	name := strings.TrimSpace(in.Name)
	if err := core.ValidateName(name); err != nil {
		return core.Wallet{}, fmt.Errorf("add wallet: %w", err)
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = core.DefaultWalletType
	}

	var created core.Wallet
	err := s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		id, err := q.CreateWallet(ctx, storage.CreateWalletParams{
			Name:          name,
			Avatar:        in.Avatar,
			Type:          typ,
			Icon:          in.Icon,
			Color:         in.Color,
			InitialAmount: core.NormalizeAmount(in.InitialAmount),
		})
		if err != nil {
			return err
		}
		created, err = q.GetWallet(ctx, id)
		return err
	})
	if err != nil {
		return core.Wallet{}, fmt.Errorf("add wallet: %w", err)
	}

	s.mu.Lock()
	s.wallets = append(s.wallets, created)
	s.mu.Unlock()
	s.lookups.Set(walletKey(created.ID), created)

	log.For(ctx, log.ComponentWallet).InfoContext(ctx, "Wallet created",
		log.FieldOperation, log.OpCreate,
		log.FieldWalletID, created.ID,
		log.FieldAmount, core.FormatAmount(created.InitialAmount))
	return created, nil
}

// UpdateWallet applies patch and replaces the list entry in place. Changing
// the initial amount recomputes the running balance in the same unit.
func (s *WalletStore) UpdateWallet(ctx context.Context, id int64, patch WalletPatch) (core.Wallet, error) {
	arg := storage.UpdateWalletParams{
		Avatar:      patch.Avatar,
		Icon:        patch.Icon,
		Color:       patch.Color,
		SortOrder:   patch.SortOrder,
		IsActive:    patch.IsActive,
		ClearAvatar: patch.ClearAvatar,
		ClearIcon:   patch.ClearIcon,
		ClearColor:  patch.ClearColor,
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := core.ValidateName(name); err != nil {
			return core.Wallet{}, fmt.Errorf("update wallet %d: %w", id, err)
		}
		arg.Name = &name
	}
	if patch.Type != nil {
		typ := strings.TrimSpace(*patch.Type)
		if typ == "" {
			typ = core.DefaultWalletType
		}
		arg.Type = &typ
	}
	if patch.InitialAmount != nil {
		amount := core.NormalizeAmount(*patch.InitialAmount)
		arg.InitialAmount = &amount
	}

	var updated core.Wallet
	err := s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		n, err := q.UpdateWallet(ctx, id, arg)
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		if arg.InitialAmount != nil {
			if err := q.RecalculateWalletBalances(ctx, id); err != nil {
				return err
			}
		}
		updated, err = q.GetWallet(ctx, id)
		return err
	})
	if err != nil {
		return core.Wallet{}, fmt.Errorf("update wallet %d: %w", id, err)
	}

	s.replace(updated)

	log.For(ctx, log.ComponentWallet).InfoContext(ctx, "Wallet updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldWalletID, id)
	return updated, nil
}

// DeleteWallet removes the wallet and, through the foreign key, its
// transactions. Wallets that received transfers from it get their running
// balance recomputed in the same unit. If it was the default wallet the
// preference is cleared. Delete hooks run last.
func (s *WalletStore) DeleteWallet(ctx context.Context, id int64) error {
	var destinations []int64
	err := s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		var err error
		if destinations, err = q.TransferDestinations(ctx, id); err != nil {
			return err
		}
		n, err := q.DeleteWallet(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		return q.RecalculateWalletBalances(ctx, destinations...)
	})
	if err != nil {
		return fmt.Errorf("delete wallet %d: %w", id, err)
	}

	s.remove(id)

	logger := log.For(ctx, log.ComponentWallet)
	for _, dest := range destinations {
		if _, err := s.RefreshWallet(ctx, dest); err != nil {
			logger.ErrorContext(ctx, "Wallet refresh failed",
				log.FieldWalletID, dest,
				log.FieldError, err)
		}
	}

	if v, ok, err := s.prefs.Get(ctx, prefs.KeyDefaultWallet); err != nil {
		logger.ErrorContext(ctx, "Failed to read default wallet preference", log.FieldError, err)
	} else if ok && v == walletKey(id) {
		if err := s.prefs.Set(ctx, prefs.KeyDefaultWallet, ""); err != nil {
			logger.ErrorContext(ctx, "Failed to clear default wallet preference",
				log.FieldWalletID, id,
				log.FieldError, err)
		}
	}

	logger.InfoContext(ctx, "Wallet deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldWalletID, id,
		log.FieldCount, len(destinations))

	s.mu.RLock()
	hooks := append([]func(context.Context, int64){}, s.onDelete...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx, id)
	}
	return nil
}

// OnDelete registers fn to run after every successful DeleteWallet.
func (s *WalletStore) OnDelete(fn func(ctx context.Context, walletID int64)) {
	s.mu.Lock()
	s.onDelete = append(s.onDelete, fn)
	s.mu.Unlock()
}

// GetWalletByID returns nil when the wallet does not exist.
func (s *WalletStore) GetWalletByID(ctx context.Context, id int64) (*core.Wallet, error) {
	if w, ok := s.lookups.Get(walletKey(id)); ok {
		return &w, nil
	}

	w, err := s.repo.Queries().GetWallet(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet %d: %w", id, err)
	}
	s.lookups.Set(walletKey(id), w)
	return &w, nil
}

// RefreshWallet re-reads one wallet into the list and the cache. A wallet
// that no longer exists is dropped from both and nil is returned.
func (s *WalletStore) RefreshWallet(ctx context.Context, id int64) (*core.Wallet, error) {
	w, err := s.repo.Queries().GetWallet(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		s.remove(id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh wallet %d: %w", id, err)
	}
	s.replace(w)
	return &w, nil
}

// DefaultWalletID returns the wallet pre-selected for new transactions.
func (s *WalletStore) DefaultWalletID(ctx context.Context) (int64, error) {
	v, ok, err := s.prefs.Get(ctx, prefs.KeyDefaultWallet)
	if err != nil {
		return 0, fmt.Errorf("read default wallet: %w", err)
	}
	if !ok || v == "" {
		return FallbackDefaultWalletID, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		log.For(ctx, log.ComponentWallet).WarnContext(ctx, "Ignoring malformed default wallet preference", "value", v)
		return FallbackDefaultWalletID, nil
	}
	return id, nil
}

// SetDefaultWalletID stores id as the default wallet; it must exist.
func (s *WalletStore) SetDefaultWalletID(ctx context.Context, id int64) error {
	w, err := s.GetWalletByID(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("set default wallet %d: %w", id, core.ErrNotFound)
	}
	if err := s.prefs.Set(ctx, prefs.KeyDefaultWallet, walletKey(id)); err != nil {
		return fmt.Errorf("set default wallet %d: %w", id, err)
	}
	return nil
}

// Wallets returns a copy of the in-memory list.
func (s *WalletStore) Wallets() []core.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneWallets(s.wallets)
}

// Invalidate drops the list and every cached lookup.
func (s *WalletStore) Invalidate() {
	s.mu.Lock()
	s.wallets = nil
	s.mu.Unlock()
	s.lookups.Purge()
}

// CacheStats exposes the lookup cache counters.
func (s *WalletStore) CacheStats() cache.Stats {
	return s.lookups.Stats()
}

func (s *WalletStore) replace(w core.Wallet) {
	s.mu.Lock()
	for i := range s.wallets {
		if s.wallets[i].ID == w.ID {
			s.wallets[i] = w
			break
		}
	}
	s.mu.Unlock()
	s.lookups.Set(walletKey(w.ID), w)
}

func (s *WalletStore) remove(id int64) {
	s.mu.Lock()
	for i := range s.wallets {
		if s.wallets[i].ID == id {
			s.wallets = append(s.wallets[:i], s.wallets[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.lookups.Delete(walletKey(id))
}

func cloneWallets(in []core.Wallet) []core.Wallet {
	out := make([]core.Wallet, len(in))
	copy(out, in)
	return out
}
