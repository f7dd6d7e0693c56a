package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"khoroch/internal/core"
)

// sumsByType aggregates income and expense; NULL sums (no matching rows)
// come back as zero. SQLite sums REAL columns in floating point, so the
// totals are rounded back to cents.
func (q *Queries) sumsByType(ctx context.Context, where string, args ...any) (income, expense decimal.Decimal, err error) {
	var in, out decimal.NullDecimal
	err = q.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN type = 'income' THEN amount END),
			SUM(CASE WHEN type = 'expense' THEN amount END)
		FROM transactions`+where, args...).Scan(&in, &out)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if in.Valid {
		income = core.NormalizeAmount(in.Decimal)
	}
	if out.Valid {
		expense = core.NormalizeAmount(out.Decimal)
	}
	return income, expense, nil
}

// SumByTypeBetween totals income and expense dated in [start, end).
func (q *Queries) SumByTypeBetween(ctx context.Context, start, end int64) (income, expense decimal.Decimal, err error) {
	income, expense, err = q.sumsByType(ctx, " WHERE date >= ? AND date < ?", start, end)
	if err != nil {
		return income, expense, fmt.Errorf("sum transactions between %d and %d: %w", start, end, err)
	}
	return income, expense, nil
}

// SumByTypeForWallet totals all-time income and expense booked on walletID.
func (q *Queries) SumByTypeForWallet(ctx context.Context, walletID int64) (income, expense decimal.Decimal, err error) {
	income, expense, err = q.sumsByType(ctx, " WHERE wallet_id = ?", walletID)
	if err != nil {
		return income, expense, fmt.Errorf("sum transactions for wallet %d: %w", walletID, err)
	}
	return income, expense, nil
}

// SumByType totals all-time income and expense across wallets.
func (q *Queries) SumByType(ctx context.Context) (income, expense decimal.Decimal, err error) {
	income, expense, err = q.sumsByType(ctx, "")
	if err != nil {
		return income, expense, fmt.Errorf("sum transactions: %w", err)
	}
	return income, expense, nil
}
