package memory

import (
	"context"
	"sync"

	"expenses/internal/core"
	"expenses/internal/storage"
)

// Store keeps expenses in process memory, in insertion order.
type Store struct {
	mu    sync.RWMutex
	items []core.Expense
}

var _ storage.Repository = (*Store)(nil)

func New(seed []core.Expense) *Store {
	items := make([]core.Expense, len(seed))
	copy(items, seed)
	return &Store{items: items}
}

// NewSeeded returns a store holding the sample expenses.
func NewSeeded() *Store {
	return New(core.SampleExpenses())
}

func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return s.items[i], nil
}

func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(e.ID) >= 0 {
		return core.Expense{}, storage.ErrDuplicateID
	}
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) Update(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(e.ID)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	s.items[i] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}
