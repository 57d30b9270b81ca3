package repository

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"

	"github.com/jask/unimarket/internal/database"
)

// CategoryRepo caches the server's category list.
type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// ReplaceAll swaps the cached list for cats in one transaction, keeping the given order.
func (r *CategoryRepo) ReplaceAll(ctx context.Context, cats []Category) error {
	fetched := database.Now()
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return errors.Wrap(err, "clear categories")
		}
		for i, c := range cats {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO categories(id, name, position, fetched_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
			 name=excluded.name,
			 position=excluded.position,
			 fetched_at=excluded.fetched_at;
			`, c.ID, c.Name, i, fetched)
			if err != nil {
				return errors.Wrapf(err, "insert category %d", c.ID)
			}
		}
		return nil
	})
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, position, fetched_at FROM categories ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Position, &c.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
