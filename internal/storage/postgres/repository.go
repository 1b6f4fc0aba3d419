// Package postgres persists expenses in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/core"
	"expenses/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectColumns   = `SELECT id, amount::text, category, description, date FROM expenses`
	uniqueViolation = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Repository)(nil)

// New migrates the database at url and opens a connection pool to it.
func New(ctx context.Context, url string) (*Repository, error) {
	if err := RunMigrations(url); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

func (r *Repository) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO expenses (id, amount, category, description, date) VALUES ($1, $2::numeric, $3, $4, $5::date)`,
		e.ID, e.Amount.String(), e.Category, e.Description, e.Date.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.Expense{}, storage.ErrDuplicateID
		}
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to Postgres", "id", e.ID, "amount", e.Amount.String())
	return e, nil
}

func (r *Repository) Update(ctx context.Context, e core.Expense) (core.Expense, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE expenses SET amount = $1::numeric, category = $2, description = $3, date = $4::date, updated_at = now() WHERE id = $5`,
		e.Amount.String(), e.Category, e.Description, e.Date.String(), e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e      core.Expense
		amount string
		date   time.Time
	)
	if err := row.Scan(&e.ID, &amount, &e.Category, &e.Description, &date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan expense: %w", err)
	}

	m, err := core.NewMoney(amount)
	if err != nil {
		return e, fmt.Errorf("expense %s amount %q: %w", e.ID, amount, err)
	}
	e.Amount = m
	e.Date = core.NewDate(date.Year(), int(date.Month()), date.Day())
	return e, nil
}
