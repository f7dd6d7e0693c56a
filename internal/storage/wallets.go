package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"khoroch/internal/core"
)

const walletColumns = `id, name, avatar, type, icon, color, sort_order,
	initial_amount, current_amount, is_active, created_at, updated_at`

// ErrNoRowsAffected is returned when an insert reports zero changes.
var ErrNoRowsAffected = errors.New("no rows affected")

func scanWallet(s scanner) (core.Wallet, error) {
	var w core.Wallet
	err := s.Scan(
		&w.ID,
		&w.Name,
		&w.Avatar,
		&w.Type,
		&w.Icon,
		&w.Color,
		&w.SortOrder,
		&w.InitialAmount,
		&w.CurrentAmount,
		&w.IsActive,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}

type CreateWalletParams struct {
	Name          string
	Avatar        *string
	Type          string
	Icon          *string
	Color         *string
	InitialAmount decimal.Decimal
}

// CreateWallet writes InitialAmount to both initial_amount and
// current_amount and returns the new id.
func (q *Queries) CreateWallet(ctx context.Context, arg CreateWalletParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO wallets (name, avatar, type, icon, color, initial_amount, current_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.Name,
		nullable(arg.Avatar),
		arg.Type,
		nullable(arg.Icon),
		nullable(arg.Color),
		arg.InitialAmount,
		arg.InitialAmount,
	)
	if err != nil {
		return 0, fmt.Errorf("insert wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert wallet: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("insert wallet: %w", ErrNoRowsAffected)
	}
	return res.LastInsertId()
}

// GetWallet returns sql.ErrNoRows when id does not exist.
func (q *Queries) GetWallet(ctx context.Context, id int64) (core.Wallet, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+walletColumns+" FROM wallets WHERE id = ?", id)
	return scanWallet(row)
}

func (q *Queries) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+walletColumns+" FROM wallets ORDER BY sort_order, id")
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	wallets := make([]core.Wallet, 0)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// UpdateWalletParams is a partial patch: nil fields are left untouched.
type UpdateWalletParams struct {
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

// UpdateWallet returns the number of rows changed (0 when id is unknown).
func (q *Queries) UpdateWallet(ctx context.Context, id int64, arg UpdateWalletParams) (int64, error) {
	var a assignments
	if arg.Name != nil {
		a.set("name", *arg.Name)
	}
	switch {
	case arg.ClearAvatar:
		a.setNull("avatar")
	case arg.Avatar != nil:
		a.set("avatar", *arg.Avatar)
	}
	if arg.Type != nil {
		a.set("type", *arg.Type)
	}
	switch {
	case arg.ClearIcon:
		a.setNull("icon")
	case arg.Icon != nil:
		a.set("icon", *arg.Icon)
	}
	switch {
	case arg.ClearColor:
		a.setNull("color")
	case arg.Color != nil:
		a.set("color", *arg.Color)
	}
	if arg.SortOrder != nil {
		a.set("sort_order", *arg.SortOrder)
	}
	if arg.InitialAmount != nil {
		a.set("initial_amount", *arg.InitialAmount)
	}
	if arg.IsActive != nil {
		a.set("is_active", *arg.IsActive)
	}
	a.touch()

	res, err := q.db.ExecContext(ctx, "UPDATE wallets SET "+a.clause()+" WHERE id = ?", append(a.args, id)...)
	if err != nil {
		return 0, fmt.Errorf("update wallet %d: %w", id, err)
	}
	return res.RowsAffected()
}

// DeleteWallet removes the wallet; its transactions go with it through the
// ON DELETE CASCADE constraint.
func (q *Queries) DeleteWallet(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM wallets WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("delete wallet %d: %w", id, err)
	}
	return res.RowsAffected()
}

// RecalculateWalletBalances sets current_amount to initial_amount plus
// income, minus expense and outgoing transfers, plus incoming transfers.
// The result is rounded to cents before it is stored. Ids of wallets that
// no longer exist are skipped.
func (q *Queries) RecalculateWalletBalances(ctx context.Context, ids ...int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		var (
			initial decimal.Decimal
			delta   decimal.NullDecimal
		)
		err := q.db.QueryRowContext(ctx, `
			SELECT w.initial_amount, (
				SELECT SUM(CASE
					WHEN t.wallet_id = w.id AND t.type = 'income' THEN t.amount
					WHEN t.wallet_id = w.id THEN -t.amount
					WHEN t.to_wallet_id = w.id AND t.type = 'transfer' THEN t.amount
					ELSE 0 END)
				FROM transactions t
				WHERE t.wallet_id = w.id OR t.to_wallet_id = w.id
			)
			FROM wallets w WHERE w.id = ?`, id).Scan(&initial, &delta)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("recalculate wallet %d balance: %w", id, err)
		}

		balance := initial
		if delta.Valid {
			balance = balance.Add(delta.Decimal)
		}
		if _, err := q.db.ExecContext(ctx,
			"UPDATE wallets SET current_amount = ? WHERE id = ?",
			core.NormalizeAmount(balance), id); err != nil {
			return fmt.Errorf("recalculate wallet %d balance: %w", id, err)
		}
	}
	return nil
}

// TransferDestinations returns the distinct destination wallets of the
// transfers booked on walletID.
func (q *Queries) TransferDestinations(ctx context.Context, walletID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT to_wallet_id FROM transactions
		WHERE wallet_id = ? AND type = 'transfer' AND to_wallet_id IS NOT NULL`, walletID)
	if err != nil {
		return nil, fmt.Errorf("query transfer destinations of wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transfer destination: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
