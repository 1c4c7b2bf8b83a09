package writeoffs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/db"
)

// Repository persists write-offs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores every record in one transaction and returns them with ids.
func (r *Repository) Insert(ctx context.Context, records []Writeoff) ([]Writeoff, error) {
	out := make([]Writeoff, len(records))
	copy(out, records)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range out {
			w := &out[i]
			err := tx.QueryRow(ctx, `INSERT INTO writeoffs (day, point, product, quantity, reason)
				VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				w.Date.Time(), w.Point, w.Product, w.Quantity, w.Reason).Scan(&w.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns write-offs matching f, newest day first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Writeoff, error) {
	var (
		where []string
		args  []any
	)
	if f.Range != nil {
		args = append(args, f.Range.From.Time(), f.Range.To.Time())
		where = append(where, fmt.Sprintf("day BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	if f.Point != "" {
		args = append(args, f.Point)
		where = append(where, fmt.Sprintf("point = $%d", len(args)))
	}
	query := `SELECT id, day, point, product, quantity, reason FROM writeoffs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY day DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Writeoff
	for rows.Next() {
		var (
			w   Writeoff
			day time.Time
		)
		if err := rows.Scan(&w.ID, &day, &w.Point, &w.Product, &w.Quantity, &w.Reason); err != nil {
			return nil, err
		}
		w.Date = daterange.FromTime(day)
		out = append(out, w)
	}
	return out, rows.Err()
}

// Delete removes one write-off.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM writeoffs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
