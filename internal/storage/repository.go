// Package storage defines the persistence port of the expense store.
//
// Backends live in subpackages: memory (process lifetime, seeded), sqlite
// and postgres. They all honor the same contract so the service above them
// does not change when persistence does.
package storage

import (
	"context"
	"errors"

	"expenses/internal/core"
)

// ErrDuplicateID is returned by Create when the identifier is already taken.
var ErrDuplicateID = errors.New("duplicate expense id")

// Repository holds the authoritative ordered collection of expenses.
//
// List returns records in insertion order. Update replaces every field but
// the ID and keeps the record's position. Get, Update and Delete return
// core.ErrNotFound for unknown identifiers and leave the collection as is.
type Repository interface {
	List(ctx context.Context) ([]core.Expense, error)
	Get(ctx context.Context, id string) (core.Expense, error)
	Create(ctx context.Context, e core.Expense) (core.Expense, error)
	Update(ctx context.Context, e core.Expense) (core.Expense, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
