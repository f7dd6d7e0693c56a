package storage

import (
	"context"
	"fmt"

	"khoroch/internal/core"
)

const categoryColumns = "id, name, type, icon, color, COALESCE(is_active, 1), created_at, updated_at"

type CreateCategoryParams struct {
	Name  string
	Type  core.TransactionType
	Icon  *string
	Color *string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO categories (name, type, icon, color) VALUES (?, ?, ?, COALESCE(?, '#000000'))`,
		arg.Name, string(arg.Type), nullable(arg.Icon), nullable(arg.Color))
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
