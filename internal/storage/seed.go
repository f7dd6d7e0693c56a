package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"khoroch/internal/core"
)

// ErrInvalidSeedOptions is returned by Seed for negative counts.
var ErrInvalidSeedOptions = errors.New("invalid seed options")

// SeedOptions controls how much demo data Seed inserts.
type SeedOptions struct {
	Wallets      int
	Categories   int
	Transactions int
	Now          time.Time // transactions go back one day each from Now
}

func DefaultSeedOptions() SeedOptions {
	return SeedOptions{
		Wallets:      10,
		Categories:   10,
		Transactions: 50,
		Now:          time.Now(),
	}
}

// Seed fills an empty database with demo wallets, categories and
// transactions, alternating cash/bank and expense/income.
func (r *Repository) Seed(ctx context.Context, opts SeedOptions) error {
	if opts.Wallets < 0 || opts.Categories < 0 || opts.Transactions < 0 {
		return fmt.Errorf("seed database: %w: counts must not be negative (wallets=%d categories=%d transactions=%d)",
			ErrInvalidSeedOptions, opts.Wallets, opts.Categories, opts.Transactions)
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	err := r.RunAtomic(ctx, func(q *Queries) error {
		walletIDs := make([]int64, 0, opts.Wallets)
		for i := 0; i < opts.Wallets; i++ {
			typ, icon := "Cash", "💰"
			if i%2 == 1 {
				typ, icon = "Bank", "🏦"
			}
			id, err := q.CreateWallet(ctx, CreateWalletParams{
				Name:          fmt.Sprintf("Wallet %d", i),
				Type:          typ,
				Icon:          &icon,
				InitialAmount: decimal.Zero,
			})
			if err != nil {
				return err
			}
			walletIDs = append(walletIDs, id)
		}

		categoryIDs := make([]int64, 0, opts.Categories)
		for i := 0; i < opts.Categories; i++ {
			typ, icon := core.Expense, "🍔"
			if i%2 == 1 {
				typ, icon = core.Income, "💰"
			}
			id, err := q.CreateCategory(ctx, CreateCategoryParams{
				Name: fmt.Sprintf("Category %d", i),
				Type: typ,
				Icon: &icon,
			})
			if err != nil {
				return err
			}
			categoryIDs = append(categoryIDs, id)
		}

		if len(walletIDs) == 0 {
			return nil
		}
		for i := 0; i < opts.Transactions; i++ {
			typ, note := core.Expense, "Food"
			if i%2 == 1 {
				typ, note = core.Income, "Salary"
			}
			arg := CreateTransactionParams{
				Type:     typ,
				Amount:   decimal.NewFromInt(int64((i*37)%1000 + 1)),
				WalletID: walletIDs[i%2%len(walletIDs)],
				Date:     opts.Now.AddDate(0, 0, -i).Unix(),
				Note:     &note,
			}
			if len(categoryIDs) > 0 {
				arg.CategoryID = &categoryIDs[i%2%len(categoryIDs)]
			}
			if _, err := q.CreateTransaction(ctx, arg); err != nil {
				return err
			}
		}
		return q.RecalculateWalletBalances(ctx, walletIDs...)
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	slog.InfoContext(ctx, "Database seeded",
		"component", "storage",
		"wallets", opts.Wallets,
		"categories", opts.Categories,
		"transactions", opts.Transactions)
	return nil
}
