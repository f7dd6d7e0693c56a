package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Raw row images used for export and restore. They keep every column as
// stored, so a dump re-inserted by ReplaceTables is identical to the source.
type (
	WalletRecord struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		Avatar        *string         `json:"avatar"`
		Type          string          `json:"type"`
		Icon          *string         `json:"icon"`
		Color         *string         `json:"color,omitempty"`
		SortOrder     int64           `json:"sort_order"`
		InitialAmount decimal.Decimal `json:"initial_amount"`
		CurrentAmount decimal.Decimal `json:"current_amount"`
		IsActive      int64           `json:"is_active"`
		CreatedAt     int64           `json:"created_at"`
		UpdatedAt     int64           `json:"updated_at"`
	}

	CategoryRecord struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Type      string  `json:"type"`
		Icon      *string `json:"icon"`
		Color     *string `json:"color"`
		IsActive  *int64  `json:"is_active"`
		CreatedAt int64   `json:"created_at"`
		UpdatedAt int64   `json:"updated_at"`
	}

	TransactionRecord struct {
		ID         int64           `json:"id"`
		Type       string          `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		WalletID   int64           `json:"wallet_id"`
		ToWalletID *int64          `json:"to_wallet_id"`
		CategoryID *int64          `json:"category_id"`
		Date       int64           `json:"date"`
		Note       *string         `json:"note"`
		Attachment *string         `json:"attachment"`
		CreatedAt  int64           `json:"created_at"`
		UpdatedAt  int64           `json:"updated_at"`
	}

	Tables struct {
		Wallets      []WalletRecord      `json:"wallets"`
		Categories   []CategoryRecord    `json:"categories"`
		Transactions []TransactionRecord `json:"transactions"`
	}
)

// ExportTables reads all three tables inside one transaction so the dump
// is a consistent point-in-time image.
func (r *Repository) ExportTables(ctx context.Context) (Tables, error) {
	var t Tables
	err := r.RunAtomic(ctx, func(q *Queries) error {
		var err error
		if t.Wallets, err = q.dumpWallets(ctx); err != nil {
			return err
		}
		if t.Categories, err = q.dumpCategories(ctx); err != nil {
			return err
		}
		t.Transactions, err = q.dumpTransactions(ctx)
		return err
	})
	if err != nil {
		return Tables{}, fmt.Errorf("export tables: %w", err)
	}
	return t, nil
}

// ReplaceTables clears all three tables and inserts t, wallets first so
// foreign keys resolve. Any failure rolls the whole replacement back.
func (r *Repository) ReplaceTables(ctx context.Context, t Tables) error {
	err := r.RunAtomic(ctx, func(q *Queries) error {
		for _, stmt := range []string{
			"DELETE FROM transactions",
			"DELETE FROM categories",
			"DELETE FROM wallets",
		} {
			if _, err := q.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("clear tables: %w", err)
			}
		}

		for _, w := range t.Wallets {
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO wallets (id, name, avatar, type, icon, color, sort_order,
					initial_amount, current_amount, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				w.ID, w.Name, nullable(w.Avatar), w.Type, nullable(w.Icon), nullable(w.Color), w.SortOrder,
				w.InitialAmount, w.CurrentAmount, w.IsActive, w.CreatedAt, w.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert wallet %d: %w", w.ID, err)
			}
		}

		for _, c := range t.Categories {
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO categories (id, name, type, icon, color, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Type, nullable(c.Icon), nullable(c.Color), nullable(c.IsActive), c.CreatedAt, c.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert category %d: %w", c.ID, err)
			}
		}

		for _, tx := range t.Transactions {
			_, err := q.db.ExecContext(ctx, `
				INSERT INTO transactions (id, type, amount, wallet_id, to_wallet_id, category_id,
					date, note, attachment, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				tx.ID, tx.Type, tx.Amount, tx.WalletID, nullable(tx.ToWalletID), nullable(tx.CategoryID),
				tx.Date, nullable(tx.Note), nullable(tx.Attachment), tx.CreatedAt, tx.UpdatedAt)
			if err != nil {
				return fmt.Errorf("insert transaction %d: %w", tx.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace tables: %w", err)
	}
	return nil
}

func (q *Queries) dumpWallets(ctx context.Context) ([]WalletRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, avatar, type, icon, color, sort_order,
			initial_amount, current_amount, is_active, created_at, updated_at
		FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dump wallets: %w", err)
	}
	defer rows.Close()

	out := make([]WalletRecord, 0)
	for rows.Next() {
		var w WalletRecord
		if err := rows.Scan(&w.ID, &w.Name, &w.Avatar, &w.Type, &w.Icon, &w.Color, &w.SortOrder,
			&w.InitialAmount, &w.CurrentAmount, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (q *Queries) dumpCategories(ctx context.Context) ([]CategoryRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, name, type, icon, color, is_active, created_at, updated_at
		FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("dump categories: %w", err)
	}
	defer rows.Close()

	out := make([]CategoryRecord, 0)
	for rows.Next() {
		var c CategoryRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) dumpTransactions(ctx context.Context) ([]TransactionRecord, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("dump transactions: %w", err)
	}
	defer rows.Close()

	out := make([]TransactionRecord, 0)
	for rows.Next() {
		var t TransactionRecord
		if err := rows.Scan(&t.ID, &t.Type, &t.Amount, &t.WalletID, &t.ToWalletID, &t.CategoryID,
			&t.Date, &t.Note, &t.Attachment, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
