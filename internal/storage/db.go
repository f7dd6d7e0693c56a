package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the typed statements. Obtain one bound to a transaction
// through Repository.RunAtomic.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

// assignments accumulates "col = ?" pairs for partial updates.
type assignments struct {
	cols []string
	args []any
}

func (a *assignments) set(col string, v any) {
	a.cols = append(a.cols, col+" = ?")
	a.args = append(a.args, v)
}

func (a *assignments) setNull(col string) {
	a.cols = append(a.cols, col+" = NULL")
}

func (a *assignments) touch() {
	a.cols = append(a.cols, "updated_at = strftime('%s','now')")
}

func (a *assignments) clause() string {
	return strings.Join(a.cols, ", ")
}

// nullable converts an optional pointer to a driver value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
