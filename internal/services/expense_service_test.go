package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ExpenseEvent
	err    error
}

func (p *recordingPublisher) PublishExpenseEvent(_ context.Context, ev amqp.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func payload(amount, category, description, date string) core.ExpensePayload {
	return core.ExpensePayload{
		Amount:      json.RawMessage(amount),
		Category:    category,
		Description: description,
		Date:        date,
	}
}

func newService(pub EventPublisher) (*ExpenseService, *memory.Store) {
	store := memory.NewSeeded()
	return NewExpenseService(store, pub), store
}

func TestCreateExpenseAssignsFreshID(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newService(pub)

	created, err := svc.CreateExpense(ctx, payload(`25`, "Shopping", "Shoes", "2024-01-10"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected an id")
	}
	for _, e := range core.SampleExpenses() {
		if e.ID == created.ID {
			t.Fatalf("id %s collides with an existing record", created.ID)
		}
	}

	items, _ := svc.ListExpenses(ctx)
	if len(items) != 6 || items[5].ID != created.ID {
		t.Fatalf("expected new record appended last, got %v", items)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventCreated || pub.events[0].ID != created.ID {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestCreateExpenseCoercesStringAmount(t *testing.T) {
	svc, _ := newService(nil)
	created, err := svc.CreateExpense(context.Background(), payload(`"12.5"`, "Food & Dining", "Lunch", "2024-01-10"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.Amount.Equal(core.MustMoney("12.5")) {
		t.Fatalf("amount = %s", created.Amount)
	}
}

func TestCreateExpenseMissingFieldsLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, store := newService(pub)

	tests := []struct {
		name string
		p    core.ExpensePayload
	}{
		{"no category", payload(`10`, "", "x", "2024-01-01")},
		{"zero amount", payload(`0`, "Other", "x", "2024-01-01")},
		{"no amount", payload(``, "Other", "x", "2024-01-01")},
		{"no description", payload(`10`, "Other", "", "2024-01-01")},
		{"no date", payload(`10`, "Other", "x", "")},
		{"bad date", payload(`10`, "Other", "x", "01/02/2024")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateExpense(ctx, tt.p)
			if !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if n, _ := store.Count(ctx); n != 5 {
		t.Fatalf("store changed: %d records", n)
	}
	if len(pub.events) != 0 {
		t.Fatalf("events published for rejected input: %+v", pub.events)
	}
}

func TestUpdateExpenseReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, _ := newService(pub)

	updated, err := svc.UpdateExpense(ctx, "1", payload(`50.00`, "Food & Dining", "Grocery shopping", "2023-04-15"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != "1" || !updated.Amount.Equal(core.MustMoney("50")) {
		t.Fatalf("unexpected record: %+v", updated)
	}

	items, _ := svc.ListExpenses(ctx)
	if items[0].ID != "1" || !items[0].Amount.Equal(core.MustMoney("50")) {
		t.Fatalf("record not replaced at its position: %+v", items[0])
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventUpdated {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestUpdateExpenseReportsNotFoundBeforeValidation(t *testing.T) {
	svc, _ := newService(nil)
	_, err := svc.UpdateExpense(context.Background(), "999", payload(``, "", "", ""))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.UpdateExpense(context.Background(), "1", payload(``, "", "", ""))
	if !core.IsValidation(err) {
		t.Fatalf("expected validation error for known id, got %v", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc, store := newService(pub)

	if err := svc.DeleteExpense(ctx, "3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteExpense(ctx, "3"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
	if n, _ := store.Count(ctx); n != 4 {
		t.Fatalf("count = %d", n)
	}
	if len(pub.events) != 1 || pub.events[0].Type != amqp.EventDeleted || pub.events[0].Expense != nil {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc, _ := newService(pub)

	if _, err := svc.CreateExpense(context.Background(), payload(`1`, "Other", "x", "2024-01-01")); err != nil {
		t.Fatalf("create should succeed despite publish failure: %v", err)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	svc := NewExpenseService(store, nil)

	n, err := svc.SeedIfEmpty(ctx, core.SampleExpenses())
	if err != nil || n != 5 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	n, err = svc.SeedIfEmpty(ctx, core.SampleExpenses())
	if err != nil || n != 0 {
		t.Fatalf("second seed should be a no-op: n=%d err=%v", n, err)
	}
	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConcurrentCreatesKeepEveryRecord(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateExpense(ctx, payload(`1.25`, "Other", "bulk", "2024-02-02")); err != nil {
				t.Errorf("create: %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := store.Count(ctx); n != 55 {
		t.Fatalf("count = %d, want 55", n)
	}
}
