// Package services holds the transaction, wallet and balance stores. They
// keep in-memory views in step with the SQLite repository.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"khoroch/internal/core"
	"khoroch/internal/log"
	"khoroch/internal/storage"
)

// ErrStaleFetch is returned by GetTransactions when a newer fetch was issued
// before this one completed. Its rows were not applied to the cache.
var ErrStaleFetch = errors.New("stale fetch superseded by a newer request")

// DefaultPageSize is the page size when a query does not set Limit.
const DefaultPageSize = 10

// TypeFilterAll disables the type filter.
const TypeFilterAll = "all"

// WalletRefresher reloads wallets whose running balance changed.
type WalletRefresher interface {
	RefreshWallet(ctx context.Context, id int64) (*core.Wallet, error)
}

type (
	TransactionStoreConfig struct {
		PageSize int
		Location *time.Location // month boundaries; nil means time.Local
	}

	// TransactionQuery selects one page of a calendar month. Only the year
	// and month of Date matter; a zero Date means now.
	TransactionQuery struct {
		Date       time.Time
		Page       int // 1-based
		Limit      int
		WalletID   int64
		CategoryID int64
		Type       string // income, expense, transfer, "all" or empty
		Search     string
	}

	TransactionState struct {
		Loading      bool
		LoadingMore  bool
		HasMore      bool
		Month        core.Month
		Transactions []core.Transaction
	}

	// NewTransaction is the input to AddTransaction. Type is matched
	// case-insensitively. Date is in unix seconds.
	NewTransaction struct {
		Type       string
		Amount     decimal.Decimal
		WalletID   int64
		ToWalletID *int64
		CategoryID *int64
		Date       int64
		Note       *string
		Attachment *string
	}

	// TransactionPatch changes only the fields that are set; Clear* flags
	// write NULL.
	TransactionPatch struct {
		Type            *string
		Amount          *decimal.Decimal
		WalletID        *int64
		ToWalletID      *int64
		CategoryID      *int64
		Date            *int64
		Note            *string
		Attachment      *string
		ClearToWallet   bool
		ClearCategory   bool
		ClearNote       bool
		ClearAttachment bool
	}
)

func DefaultTransactionStoreConfig() TransactionStoreConfig {
	return TransactionStoreConfig{
		PageSize: DefaultPageSize,
		Location: time.Local,
	}
}

// TransactionStore keeps a paginated window of one month's transactions in
// sync with the database. Every mutation recomputes the balance summary.
type TransactionStore struct {
	repo    *storage.Repository
	balance *BalanceStore
	wallets WalletRefresher
	cfg     TransactionStoreConfig

	mu     sync.Mutex
	seq    uint64
	active core.Month
	state  TransactionState

	// fetched runs between a page query and applying its rows; tests use
	// it to interleave fetches.
	fetched func()
}

// NewTransactionStore wires the store. balance and wallets may be nil.
func NewTransactionStore(repo *storage.Repository, balance *BalanceStore, wallets WalletRefresher, cfg TransactionStoreConfig) *TransactionStore {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &TransactionStore{
		repo:    repo,
		balance: balance,
		wallets: wallets,
		cfg:     cfg,
	}
}

func parseTypeFilter(s string) (core.TransactionType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, TypeFilterAll) {
		return "", nil
	}
	return core.ParseTransactionType(s)
}

// GetTransactions fetches one page. Page 1 replaces the cached window,
// later pages are appended. HasMore is set when the page came back full.
// If another fetch was issued meanwhile, the rows are dropped and
// ErrStaleFetch is returned. On error the cached rows are left as they were.
func (s *TransactionStore) GetTransactions(ctx context.Context, q TransactionQuery) ([]core.Transaction, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = s.cfg.PageSize
	}
	if q.Date.IsZero() {
		q.Date = time.Now()
	}
	typ, err := parseTypeFilter(q.Type)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	month := core.MonthOf(q.Date.In(s.cfg.Location))
	start, end := month.Bounds()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.active = month
	if q.Page == 1 {
		s.state.Loading = true
	} else {
		s.state.LoadingMore = true
	}
	s.mu.Unlock()

	rows, err := s.repo.Queries().ListTransactions(ctx, storage.ListTransactionsParams{
		Start:      start,
		End:        end,
		WalletID:   q.WalletID,
		CategoryID: q.CategoryID,
		Type:       typ,
		Search:     strings.TrimSpace(q.Search),
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	})
	if s.fetched != nil {
		s.fetched()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		log.For(ctx, log.ComponentTransaction).DebugContext(ctx, "Discarding stale transaction page",
			log.FieldSequence, seq,
			log.FieldMonth, month.String(),
			log.FieldPage, q.Page)
		return nil, ErrStaleFetch
	}

	s.state.Loading = false
	s.state.LoadingMore = false
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}

	if q.Page == 1 {
		s.state.Transactions = rows
	} else {
		s.state.Transactions = append(s.state.Transactions, rows...)
	}
	s.state.Month = month
	s.state.HasMore = len(rows) == q.Limit

	out := make([]core.Transaction, len(rows))
	copy(out, rows)
	return out, nil
}

// GetTransaction returns nil when id does not exist. The cache is not used.
func (s *TransactionStore) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	t, err := s.repo.Queries().GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return &t, nil
}

// ListWalletTransactions returns every transaction booked on walletID, most
// recent first. The cache is not used.
func (s *TransactionStore) ListWalletTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error) {
	rows, err := s.repo.Queries().ListWalletTransactions(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("list wallet %d transactions: %w", walletID, err)
	}
	return rows, nil
}

func validateTransfer(typ core.TransactionType, walletID int64, toWalletID *int64) error {
	if walletID <= 0 {
		return core.ErrInvalidWallet
	}
	if typ != core.Transfer {
		if toWalletID != nil {
			return fmt.Errorf("%w: destination wallet on a %s", core.ErrInvalidWallet, typ)
		}
		return nil
	}
	if toWalletID == nil || *toWalletID <= 0 {
		return fmt.Errorf("%w: transfer needs a destination wallet", core.ErrInvalidWallet)
	}
	if *toWalletID == walletID {
		return fmt.Errorf("%w: transfer to the same wallet", core.ErrInvalidWallet)
	}
	return nil
}

func (n NewTransaction) params() (storage.CreateTransactionParams, error) {
	typ, err := core.ParseTransactionType(n.Type)
	if err != nil {
		return storage.CreateTransactionParams{}, err
	}
	if err := core.ValidateAmount(n.Amount); err != nil {
		return storage.CreateTransactionParams{}, err
	}
	if err := validateTransfer(typ, n.WalletID, n.ToWalletID); err != nil {
		return storage.CreateTransactionParams{}, err
	}
	if n.Date <= 0 {
		return storage.CreateTransactionParams{}, core.ErrInvalidDate
	}
	return storage.CreateTransactionParams{
		Type:       typ,
		Amount:     core.NormalizeAmount(n.Amount),
		WalletID:   n.WalletID,
		ToWalletID: n.ToWalletID,
		CategoryID: n.CategoryID,
		Date:       n.Date,
		Note:       n.Note,
		Attachment: n.Attachment,
	}, nil
}

// AddTransaction inserts the row, re-reads it and prepends it to the cached
// window. Balances of the wallets involved are recomputed in the same unit.
func (s *TransactionStore) AddTransaction(ctx context.Context, in NewTransaction) (core.Transaction, error) {
	arg, err := in.params()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	var created core.Transaction
	err = s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		id, err := q.CreateTransaction(ctx, arg)
		if err != nil {
			return err
		}
		if created, err = q.GetTransaction(ctx, id); err != nil {
			return fmt.Errorf("reread transaction %d: %w", id, err)
		}
		return q.RecalculateWalletBalances(ctx, created.WalletIDs()...)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.mu.Lock()
	s.state.Transactions = append([]core.Transaction{created}, s.state.Transactions...)
	s.mu.Unlock()

	log.For(ctx, log.ComponentTransaction).InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithTransaction(created.ID, created.Type.String(), core.FormatAmount(created.Amount), created.WalletID).
			ToSlice()...)

	s.afterMutation(ctx, created.Date, created.WalletIDs())
	return created, nil
}

// UpdateTransaction applies patch and replaces the cached entry in place.
// Switching away from transfer drops the stored destination wallet; a patch
// that sets a destination on a non-transfer fails with core.ErrInvalidWallet.
// A missing id returns core.ErrNotFound.
func (s *TransactionStore) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (core.Transaction, error) {
	arg := storage.UpdateTransactionParams{
		WalletID:        patch.WalletID,
		ToWalletID:      patch.ToWalletID,
		CategoryID:      patch.CategoryID,
		Date:            patch.Date,
		Note:            patch.Note,
		Attachment:      patch.Attachment,
		ClearToWallet:   patch.ClearToWallet,
		ClearCategory:   patch.ClearCategory,
		ClearNote:       patch.ClearNote,
		ClearAttachment: patch.ClearAttachment,
	}
	if patch.Type != nil {
		typ, err := core.ParseTransactionType(*patch.Type)
		if err != nil {
			return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
		}
		arg.Type = &typ
	}
	if patch.Amount != nil {
		if err := core.ValidateAmount(*patch.Amount); err != nil {
			return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
		}
		amount := core.NormalizeAmount(*patch.Amount)
		arg.Amount = &amount
	}
	if patch.Date != nil && *patch.Date <= 0 {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, core.ErrInvalidDate)
	}

	var before, after core.Transaction
	err := s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		var err error
		before, err = q.GetTransaction(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return err
		}

		merged := mergePatch(before, arg)
		if merged.Type != core.Transfer && merged.ToWalletID != nil {
			if arg.ToWalletID != nil {
				return fmt.Errorf("%w: destination wallet on a %s", core.ErrInvalidWallet, merged.Type)
			}
			arg.ClearToWallet = true
			merged.ToWalletID = nil
		}
		if err := validateTransfer(merged.Type, merged.WalletID, merged.ToWalletID); err != nil {
			return err
		}

		n, err := q.UpdateTransaction(ctx, id, arg)
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}
		if after, err = q.GetTransaction(ctx, id); err != nil {
			return fmt.Errorf("reread transaction %d: %w", id, err)
		}
		return q.RecalculateWalletBalances(ctx, append(before.WalletIDs(), after.WalletIDs()...)...)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.state.Transactions {
		if s.state.Transactions[i].ID == id {
			s.state.Transactions[i] = after
			break
		}
	}
	s.mu.Unlock()

	log.For(ctx, log.ComponentTransaction).InfoContext(ctx, "Transaction updated",
		log.NewFields().
			WithOperation(log.OpUpdate).
			WithTransaction(after.ID, after.Type.String(), core.FormatAmount(after.Amount), after.WalletID).
			ToSlice()...)

	s.afterMutation(ctx, after.Date, append(before.WalletIDs(), after.WalletIDs()...))
	return after, nil
}

// mergePatch previews the row after the patch for validation.
func mergePatch(t core.Transaction, arg storage.UpdateTransactionParams) core.Transaction {
	if arg.Type != nil {
		t.Type = *arg.Type
	}
	if arg.WalletID != nil {
		t.WalletID = *arg.WalletID
	}
	switch {
	case arg.ClearToWallet:
		t.ToWalletID = nil
	case arg.ToWalletID != nil:
		to := *arg.ToWalletID
		t.ToWalletID = &to
	}
	return t
}

// DeleteTransaction removes the row and its cached entry. A missing id
// returns core.ErrNotFound.
func (s *TransactionStore) DeleteTransaction(ctx context.Context, id int64) error {
	var deleted core.Transaction
	err := s.repo.RunAtomic(ctx, func(q *storage.Queries) error {
		var err error
		deleted, err = q.GetTransaction(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNotFound
		}
		if err != nil {
			return err
		}
		if _, err := q.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		return q.RecalculateWalletBalances(ctx, deleted.WalletIDs()...)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	s.mu.Lock()
	for i := range s.state.Transactions {
		if s.state.Transactions[i].ID == id {
			s.state.Transactions = append(s.state.Transactions[:i], s.state.Transactions[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	log.For(ctx, log.ComponentTransaction).InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldTransactionID, id)

	s.afterMutation(ctx, deleted.Date, deleted.WalletIDs())
	return nil
}

// afterMutation recomputes the active month's summary and reloads the
// affected wallets. Failures are logged; the mutation already committed.
func (s *TransactionStore) afterMutation(ctx context.Context, date int64, walletIDs []int64) {
	logger := log.For(ctx, log.ComponentTransaction)

	if s.balance != nil {
		s.mu.Lock()
		month := s.active
		s.mu.Unlock()
		if month.IsZero() {
			month = core.MonthOf(time.Unix(date, 0).In(s.cfg.Location))
		}
		if _, err := s.balance.GetSummary(ctx, month); err != nil {
			logger.ErrorContext(ctx, "Balance recomputation failed",
				log.FieldMonth, month.String(),
				log.FieldError, err)
		}
	}

	if s.wallets != nil {
		seen := make(map[int64]struct{}, len(walletIDs))
		for _, id := range walletIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if _, err := s.wallets.RefreshWallet(ctx, id); err != nil {
				logger.ErrorContext(ctx, "Wallet refresh failed",
					log.FieldWalletID, id,
					log.FieldError, err)
			}
		}
	}
}

// WalletDeleted drops cached rows booked on walletID, clears it as a
// transfer destination of the remaining rows and recomputes the summary of
// the active month.
func (s *TransactionStore) WalletDeleted(ctx context.Context, walletID int64) {
	s.mu.Lock()
	kept := make([]core.Transaction, 0, len(s.state.Transactions))
	for _, t := range s.state.Transactions {
		if t.WalletID == walletID {
			continue
		}
		if t.ToWalletID != nil && *t.ToWalletID == walletID {
			t.ToWalletID = nil
		}
		kept = append(kept, t)
	}
	dropped := len(s.state.Transactions) - len(kept)
	s.state.Transactions = kept
	month := s.active
	s.mu.Unlock()

	logger := log.For(ctx, log.ComponentTransaction)
	logger.DebugContext(ctx, "Dropped cached rows of deleted wallet",
		log.FieldWalletID, walletID,
		log.FieldCount, dropped)

	if s.balance == nil {
		return
	}
	if month.IsZero() {
		month = s.balance.Summary().Month
	}
	if month.IsZero() {
		return
	}
	if _, err := s.balance.GetSummary(ctx, month); err != nil {
		logger.ErrorContext(ctx, "Balance recomputation failed",
			log.FieldMonth, month.String(),
			log.FieldError, err)
	}
}

// ActiveMonth is the month of the last GetTransactions call.
func (s *TransactionStore) ActiveMonth() core.Month {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns a copy of the cached window and flags.
func (s *TransactionStore) State() TransactionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Transactions = make([]core.Transaction, len(s.state.Transactions))
	copy(st.Transactions, s.state.Transactions)
	return st
}

// Reset discards the cached window. In-flight fetches become stale.
func (s *TransactionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.state = TransactionState{}
}
