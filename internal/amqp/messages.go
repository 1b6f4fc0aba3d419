package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"expenses/internal/core"
)

type EventType string

const (
	EventCreated EventType = "expense.created"
	EventUpdated EventType = "expense.updated"
	EventDeleted EventType = "expense.deleted"
)

// ExpenseEvent announces a committed store mutation.
// Expense carries the stored record; it is nil for deletions.
type ExpenseEvent struct {
	Type      EventType     `json:"type"`
	ID        string        `json:"id"`
	Expense   *core.Expense `json:"expense,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewExpenseEvent stamps an event for the given record.
func NewExpenseEvent(t EventType, e core.Expense) ExpenseEvent {
	ev := ExpenseEvent{Type: t, ID: e.ID, Timestamp: time.Now().UTC()}
	if t != EventDeleted {
		ev.Expense = &e
	}
	return ev
}

func (e ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and checks an event body.
func ExpenseEventFromJSON(data []byte) (ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	switch ev.Type {
	case EventCreated, EventUpdated:
		if ev.Expense == nil {
			return ev, fmt.Errorf("%s event for %q has no expense", ev.Type, ev.ID)
		}
	case EventDeleted:
	default:
		return ev, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID == "" {
		return ev, fmt.Errorf("%s event has no id", ev.Type)
	}
	return ev, nil
}
