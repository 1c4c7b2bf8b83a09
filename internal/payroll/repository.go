package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/breadline/backoffice/internal/daterange"
	"github.com/breadline/backoffice/internal/platform/db"
)

// Repository persists payroll data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEmployees returns employees ordered by id. Hours are not loaded.
func (r *Repository) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, first_name, last_name, grp FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &e.Group); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// HoursBetween loads day records inside rng keyed by employee id.
func (r *Repository) HoursBetween(ctx context.Context, rng daterange.Range) (map[int64]HoursRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT employee_id, day, hours::float8, worked
		FROM employee_hours WHERE day BETWEEN $1 AND $2`, rng.From.Time(), rng.To.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]HoursRecord)
	for rows.Next() {
		var (
			id  int64
			day time.Time
			rec DayRecord
		)
		if err := rows.Scan(&id, &day, &rec.Hours, &rec.Worked); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(HoursRecord)
		}
		out[id][daterange.FromTime(day).String()] = rec
	}
	return out, rows.Err()
}

// CreateEmployee inserts e and its hours.
func (r *Repository) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO employees (first_name, last_name, grp) VALUES ($1, $2, $3) RETURNING id`,
			e.FirstName, e.LastName, e.Group).Scan(&e.ID)
		if err != nil {
			return err
		}
		return insertHours(ctx, tx, e.ID, e.Hours)
	})
	return e, err
}

// UpdateEmployee overwrites e's fields. When replace is set, hours inside it
// are replaced by e.Hours.
func (r *Repository) UpdateEmployee(ctx context.Context, e Employee, replace *daterange.Range) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE employees SET first_name = $1, last_name = $2, grp = $3, updated_at = now() WHERE id = $4`,
			e.FirstName, e.LastName, e.Group, e.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: employee %d", ErrNotFound, e.ID)
		}
		if replace == nil {
			return nil
		}
		return replaceHours(ctx, tx, e.ID, *replace, e.Hours)
	})
}

// DeleteEmployee removes an employee and its hours.
func (r *Repository) DeleteEmployee(ctx context.Context, id int64) (Employee, error) {
	e := Employee{ID: id}
	err := r.pool.QueryRow(ctx, `DELETE FROM employees WHERE id = $1 RETURNING first_name, last_name, grp`, id).
		Scan(&e.FirstName, &e.LastName, &e.Group)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, fmt.Errorf("%w: employee %d", ErrNotFound, id)
	}
	return e, err
}

// ReplaceHours swaps the records of several employees inside rng in one transaction.
func (r *Repository) ReplaceHours(ctx context.Context, rng daterange.Range, hours map[int64]HoursRecord) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for id, rec := range hours {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: employee %d", ErrNotFound, id)
			}
			if err := replaceHours(ctx, tx, id, rng, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func replaceHours(ctx context.Context, tx pgx.Tx, id int64, rng daterange.Range, hours HoursRecord) error {
	if _, err := tx.Exec(ctx, `DELETE FROM employee_hours WHERE employee_id = $1 AND day BETWEEN $2 AND $3`,
		id, rng.From.Time(), rng.To.Time()); err != nil {
		return err
	}
	return insertHours(ctx, tx, id, hours.Within(rng))
}

func insertHours(ctx context.Context, tx pgx.Tx, id int64, hours HoursRecord) error {
	if len(hours) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for day, rec := range hours {
		if rec.Empty() {
			continue
		}
		d, err := daterange.Parse(day)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		batch.Queue(`INSERT INTO employee_hours (employee_id, day, hours, worked) VALUES ($1, $2, $3, $4)
			ON CONFLICT (employee_id, day) DO UPDATE SET hours = EXCLUDED.hours, worked = EXCLUDED.worked`,
			id, d.Time(), rec.Hours, rec.Worked)
	}
	if batch.Len() == 0 {
		return nil
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ListRates returns every rate card ordered by group.
func (r *Repository) ListRates(ctx context.Context) ([]RateCard, error) {
	rows, err := r.pool.Query(ctx, `SELECT grp, payment_type, hourly_rate::text, daily_rate::text FROM salary_rates ORDER BY grp`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RateCard
	for rows.Next() {
		var (
			c             RateCard
			pt            string
			hourly, daily string
		)
		if err := rows.Scan(&c.Group, &pt, &hourly, &daily); err != nil {
			return nil, err
		}
		c.PaymentType = PaymentType(pt)
		if c.HourlyRate, err = decimal.NewFromString(hourly); err != nil {
			return nil, err
		}
		if c.DailyRate, err = decimal.NewFromString(daily); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertRate inserts or replaces a group's card.
func (r *Repository) UpsertRate(ctx context.Context, c RateCard) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO salary_rates (grp, payment_type, hourly_rate, daily_rate)
		VALUES ($1, $2, $3::numeric, $4::numeric)
		ON CONFLICT (grp) DO UPDATE SET payment_type = EXCLUDED.payment_type,
			hourly_rate = EXCLUDED.hourly_rate, daily_rate = EXCLUDED.daily_rate`,
		c.Group, string(c.PaymentType), c.HourlyRate.String(), c.DailyRate.String())
	return err
}

// DeleteRate removes a group's card unless an employee still uses it. The
// check and the delete share a serializable transaction.
func (r *Repository) DeleteRate(ctx context.Context, group string) (RateCard, error) {
	var card RateCard
	err := db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		var used bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE grp = $1)`, group).Scan(&used); err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: %s", ErrRateInUse, group)
		}
		var pt, hourly, daily string
		err := tx.QueryRow(ctx, `DELETE FROM salary_rates WHERE grp = $1 RETURNING grp, payment_type, hourly_rate::text, daily_rate::text`, group).
			Scan(&card.Group, &pt, &hourly, &daily)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: group %s", ErrNotFound, group)
		}
		if err != nil {
			return err
		}
		card.PaymentType = PaymentType(pt)
		card.HourlyRate, _ = decimal.NewFromString(hourly)
		card.DailyRate, _ = decimal.NewFromString(daily)
		return nil
	})
	return card, err
}
