package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"khoroch/internal/core"
)

const transactionColumns = `id, type, amount, wallet_id, to_wallet_id, category_id,
	date, note, attachment, created_at, updated_at`

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	err := s.Scan(
		&t.ID,
		&t.Type,
		&t.Amount,
		&t.WalletID,
		&t.ToWalletID,
		&t.CategoryID,
		&t.Date,
		&t.Note,
		&t.Attachment,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func collectTransactions(rowsFn func() (scannerRows, error)) ([]core.Transaction, error) {
	rows, err := rowsFn()
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scannerRows interface {
	scanner
	Next() bool
	Close() error
	Err() error
}

type CreateTransactionParams struct {
	Type       core.TransactionType
	Amount     decimal.Decimal
	WalletID   int64
	ToWalletID *int64
	CategoryID *int64
	Date       int64
	Note       *string
	Attachment *string
}

// CreateTransaction returns the assigned id; created_at/updated_at come
// from column defaults.
func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (type, amount, wallet_id, to_wallet_id, category_id, date, note, attachment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(arg.Type),
		arg.Amount,
		arg.WalletID,
		nullable(arg.ToWalletID),
		nullable(arg.CategoryID),
		arg.Date,
		nullable(arg.Note),
		nullable(arg.Attachment),
	)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

// GetTransaction returns sql.ErrNoRows when id does not exist.
func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	return scanTransaction(row)
}

// ListTransactionsParams bounds the query to [Start, End). Zero ids and an
// empty Type or Search mean "no filter".
type ListTransactionsParams struct {
	Start      int64
	End        int64
	WalletID   int64
	CategoryID int64
	Type       core.TransactionType
	Search     string
	Limit      int
	Offset     int
}

// ListTransactions orders by date descending; id breaks ties so pages never
// overlap or skip rows that share a timestamp.
func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]core.Transaction, error) {
	var (
		sb   strings.Builder
		args = []any{arg.Start, arg.End}
	)
	sb.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE date >= ? AND date < ?")
	if arg.WalletID != 0 {
		sb.WriteString(" AND wallet_id = ?")
		args = append(args, arg.WalletID)
	}
	if arg.CategoryID != 0 {
		sb.WriteString(" AND category_id = ?")
		args = append(args, arg.CategoryID)
	}
	if arg.Type != "" {
		sb.WriteString(" AND type = ?")
		args = append(args, string(arg.Type))
	}
	if arg.Search != "" {
		sb.WriteString(` AND note LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(arg.Search)+"%")
	}
	sb.WriteString(" ORDER BY date DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, arg.Limit, arg.Offset)

	return collectTransactions(func() (scannerRows, error) {
		return q.db.QueryContext(ctx, sb.String(), args...)
	})
}

// ListWalletTransactions returns every transaction booked on walletID,
// most recent first.
func (q *Queries) ListWalletTransactions(ctx context.Context, walletID int64) ([]core.Transaction, error) {
	return collectTransactions(func() (scannerRows, error) {
		return q.db.QueryContext(ctx,
			"SELECT "+transactionColumns+" FROM transactions WHERE wallet_id = ? ORDER BY date DESC, id DESC",
			walletID)
	})
}

// UpdateTransactionParams is a partial patch: nil fields are left untouched,
// Clear* flags write NULL.
type UpdateTransactionParams struct {
	Type            *core.TransactionType
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

// UpdateTransaction returns the number of rows changed (0 when id is unknown).
func (q *Queries) UpdateTransaction(ctx context.Context, id int64, arg UpdateTransactionParams) (int64, error) {
	var a assignments
	if arg.Type != nil {
		a.set("type", string(*arg.Type))
	}
	if arg.Amount != nil {
		a.set("amount", *arg.Amount)
	}
	if arg.WalletID != nil {
		a.set("wallet_id", *arg.WalletID)
	}
	switch {
	case arg.ClearToWallet:
		a.setNull("to_wallet_id")
	case arg.ToWalletID != nil:
		a.set("to_wallet_id", *arg.ToWalletID)
	}
	switch {
	case arg.ClearCategory:
		a.setNull("category_id")
	case arg.CategoryID != nil:
		a.set("category_id", *arg.CategoryID)
	}
	if arg.Date != nil {
		a.set("date", *arg.Date)
	}
	switch {
	case arg.ClearNote:
		a.setNull("note")
	case arg.Note != nil:
		a.set("note", *arg.Note)
	}
	switch {
	case arg.ClearAttachment:
		a.setNull("attachment")
	case arg.Attachment != nil:
		a.set("attachment", *arg.Attachment)
	}
	a.touch()

	res, err := q.db.ExecContext(ctx, "UPDATE transactions SET "+a.clause()+" WHERE id = ?", append(a.args, id)...)
	if err != nil {
		return 0, fmt.Errorf("update transaction %d: %w", id, err)
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return res.RowsAffected()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
