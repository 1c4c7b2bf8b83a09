package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breadline/backoffice/internal/platform/db"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	EnsureLevel(ctx context.Context, point, product string, at time.Time) error
	LevelForUpdate(ctx context.Context, point, product string) (Level, error)
	UpsertLevel(ctx context.Context, level Level) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Levels lists every stock row.
func (r *Repository) Levels(ctx context.Context) ([]Level, error) {
	rows, err := r.pool.Query(ctx, `SELECT point, product, quantity, updated_at FROM stocks ORDER BY point, product`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.Point, &l.Product, &l.Quantity, &l.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, l)
	}
	return levels, rows.Err()
}

// Movements lists the most recent movements, newest first.
func (r *Repository) Movements(ctx context.Context, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, point, product, op, quantity, before_qty, after_qty, created_at
		FROM stock_movements ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var op string
		if err := rows.Scan(&m.ID, &m.Point, &m.Product, &op, &m.Quantity, &m.Before, &m.After, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Op = Operation(op)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RegisterProducts inserts names not yet in the catalogue.
func (r *Repository) RegisterProducts(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO products (name)
		SELECT DISTINCT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING`, names)
	return err
}

// Products lists the catalogue.
func (r *Repository) Products(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnsureLevel creates a zero row for a new pair so LevelForUpdate always has
// a row to lock.
func (t *txRepo) EnsureLevel(ctx context.Context, point, product string, at time.Time) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stocks (point, product, quantity, updated_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (point, product) DO NOTHING`, point, product, at)
	return err
}

func (t *txRepo) LevelForUpdate(ctx context.Context, point, product string) (Level, error) {
	l := Level{Point: point, Product: product}
	err := t.tx.QueryRow(ctx, `SELECT quantity, updated_at FROM stocks
		WHERE point = $1 AND product = $2 FOR UPDATE`, point, product).Scan(&l.Quantity, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ErrLevelNotFound
	}
	return l, err
}

func (t *txRepo) UpsertLevel(ctx context.Context, level Level) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO stocks (point, product, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (point, product) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`,
		level.Point, level.Product, level.Quantity, level.UpdatedAt)
	return err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_movements (point, product, op, quantity, before_qty, after_qty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		m.Point, m.Product, string(m.Op), m.Quantity, m.Before, m.After, m.CreatedAt).Scan(&id)
	return id, err
}
