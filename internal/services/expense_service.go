package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/storage"

	"github.com/google/uuid"
)

// EventPublisher receives a notification for every committed mutation.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev amqp.ExpenseEvent) error
}

// ExpenseService applies the store rules on top of a repository and
// announces committed changes.
type ExpenseService struct {
	storage   storage.Repository
	publisher EventPublisher
	newID     func() string
}

// NewExpenseService builds the service. publisher may be nil.
func NewExpenseService(repo storage.Repository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   repo,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// ListExpenses returns every expense in insertion order.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	items, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

// CreateExpense validates p, assigns a fresh identifier and stores the record.
func (s *ExpenseService) CreateExpense(ctx context.Context, p core.ExpensePayload) (core.Expense, error) {
	in, err := p.Input()
	if err != nil {
		return core.Expense{}, err
	}

	created, err := s.storage.Create(ctx, in.WithID(s.newID()))
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventCreated, created))
	return created, nil
}

// UpdateExpense replaces every field of the expense with the given id.
// An unknown id is reported before the payload is looked at.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, p core.ExpensePayload) (core.Expense, error) {
	if _, err := s.storage.Get(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("load expense %s: %w", id, err)
	}

	in, err := p.Input()
	if err != nil {
		return core.Expense{}, err
	}

	updated, err := s.storage.Update(ctx, in.WithID(id))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventUpdated, updated))
	return updated, nil
}

// DeleteExpense removes the expense with the given id.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventDeleted, core.Expense{ID: id}))
	return nil
}

// SeedIfEmpty stores seed when the repository holds nothing yet and
// reports how many records were inserted. No events are published.
func (s *ExpenseService) SeedIfEmpty(ctx context.Context, seed []core.Expense) (int, error) {
	n, err := s.storage.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, e := range seed {
		if _, err := s.storage.Create(ctx, e); err != nil {
			return i, fmt.Errorf("seed expense %s: %w", e.ID, err)
		}
	}
	slog.InfoContext(ctx, "Seeded empty store", "count", len(seed))
	return len(seed), nil
}

// Ping reports whether the repository answers.
func (s *ExpenseService) Ping(ctx context.Context) error {
	if _, err := s.storage.Count(ctx); err != nil {
		return fmt.Errorf("storage unavailable: %w", err)
	}
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, ev amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		// The mutation is committed; the mirror catches up on the next reconcile.
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", ev.Type,
			"id", ev.ID,
			"error", err)
	}
}
