package replica

import (
	"fmt"

	"expenses/internal/client"
)

type Op string

const (
	OpLoad   Op = "load"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// State is the life stage of a single mutation.
type State int

const (
	StateIdle State = iota
	StateOptimistic
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Transition struct {
	Op   Op
	ID   string
	From State
	To   State
}

// Failure describes a mutation or load the service did not accept.
type Failure struct {
	Op   Op
	ID   string
	Kind client.Kind
	Err  error
}

type Alerter interface {
	Alert(f Failure)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(Failure)

func (f AlertFunc) Alert(failure Failure) { f(failure) }
