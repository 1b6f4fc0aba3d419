// Package replica keeps a client-side working copy of the expense list.
//
// Mutations are applied to the copy immediately, confirmed against the
// service, and either adopted or rolled back. Mutations to one record run
// one at a time in call order; mutations to different records overlap.
package replica

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"expenses/internal/analytics"
	"expenses/internal/client"
	"expenses/internal/core"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// LocalPrefix marks identifiers minted for records the service has not
// confirmed yet.
const LocalPrefix = "local-"

// Remote is the subset of the service a replica needs.
type Remote interface {
	List(ctx context.Context) ([]core.Expense, error)
	Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	Update(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error)
	Delete(ctx context.Context, id string) error
}

type Replica struct {
	remote   Remote
	alerter  Alerter
	observe  func(Transition)
	attempts int
	backoff  time.Duration

	mu      sync.RWMutex
	items   []core.Expense
	aliases map[string]string // local token -> service id

	locks idLocks
	loads singleflight.Group
}

type Option func(*Replica)

// WithAlerter sets who is told about rolled back mutations.
func WithAlerter(a Alerter) Option {
	return func(r *Replica) { r.alerter = a }
}

// WithRetry sets how many times idempotent calls are attempted on transport
// failures and the first backoff delay, which doubles per attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(r *Replica) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if backoff > 0 {
			r.backoff = backoff
		}
	}
}

// WithObserver registers a callback for every mutation state change.
func WithObserver(fn func(Transition)) Option {
	return func(r *Replica) { r.observe = fn }
}

func New(remote Remote, opts ...Option) *Replica {
	r := &Replica{
		remote:   remote,
		alerter:  AlertFunc(func(Failure) {}),
		attempts: 3,
		backoff:  200 * time.Millisecond,
		items:    []core.Expense{},
		aliases:  make(map[string]string),
		locks:    idLocks{m: make(map[string]*idLock)},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsLocal reports whether id is an unconfirmed correlation token.
func IsLocal(id string) bool {
	return strings.HasPrefix(id, LocalPrefix)
}

// Load replaces the working copy with the service's list. Concurrent calls
// share one request. On failure the previous copy is kept.
func (r *Replica) Load(ctx context.Context) error {
	_, err, _ := r.loads.Do("load", func() (any, error) {
		var items []core.Expense
		err := r.retry(ctx, func() error {
			var err error
			items, err = r.remote.List(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.items = append([]core.Expense{}, items...)
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		r.alerter.Alert(Failure{Op: OpLoad, Kind: client.KindOf(err), Err: err})
		return fmt.Errorf("load expenses: %w", err)
	}
	return nil
}

// Create appends in under a fresh local token, then swaps the token for
// the service record. Create is never retried.
func (r *Replica) Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	token := LocalPrefix + uuid.NewString()
	release, err := r.locks.acquire(ctx, token)
	if err != nil {
		return core.Expense{}, err
	}
	defer release()

	r.transition(OpCreate, token, StateIdle, StateOptimistic)
	r.mu.Lock()
	r.items = append(r.items, in.WithID(token))
	r.mu.Unlock()

	created, err := r.remote.Create(ctx, in)
	if err != nil {
		r.mu.Lock()
		if i := r.indexOf(token); i >= 0 {
			r.items = append(r.items[:i], r.items[i+1:]...)
		}
		r.mu.Unlock()
		r.fail(OpCreate, token, StateOptimistic, err)
		return core.Expense{}, err
	}

	// A Load that finished while the create was in flight may already
	// hold the server record.
	r.mu.Lock()
	i, j := r.indexOf(token), r.indexOf(created.ID)
	switch {
	case i >= 0 && j >= 0:
		r.items = append(r.items[:i], r.items[i+1:]...)
	case i >= 0:
		r.items[i] = created
	case j < 0:
		r.items = append(r.items, created)
	}
	r.aliases[token] = created.ID
	r.mu.Unlock()
	r.transition(OpCreate, created.ID, StateOptimistic, StateConfirmed)
	return created, nil
}

// Update replaces the record in place, confirms it, and restores the
// previous record on failure. id may be a local token.
func (r *Replica) Update(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error) {
	id, release, err := r.acquire(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	defer release()

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return core.Expense{}, fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	original := r.items[i]
	r.items[i] = in.WithID(id)
	r.mu.Unlock()
	r.transition(OpUpdate, id, StateIdle, StateOptimistic)

	var updated core.Expense
	err = r.retry(ctx, func() error {
		var err error
		updated, err = r.remote.Update(ctx, id, in)
		return err
	})
	if err != nil {
		r.mu.Lock()
		if j := r.indexOf(id); j >= 0 {
			r.items[j] = original
		} else {
			r.insertAt(i, original)
		}
		r.mu.Unlock()
		r.fail(OpUpdate, id, StateOptimistic, err)
		return core.Expense{}, err
	}

	r.mu.Lock()
	if j := r.indexOf(id); j >= 0 {
		r.items[j] = updated
	}
	r.mu.Unlock()
	r.transition(OpUpdate, id, StateOptimistic, StateConfirmed)
	return updated, nil
}

// Delete removes the record, confirms it, and reinserts it at its old
// position on failure. id may be a local token.
func (r *Replica) Delete(ctx context.Context, id string) error {
	id, release, err := r.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	r.mu.Lock()
	i := r.indexOf(id)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	original := r.items[i]
	r.items = append(r.items[:i], r.items[i+1:]...)
	r.mu.Unlock()
	r.transition(OpDelete, id, StateIdle, StateOptimistic)

	// A 404 after a transport failure means an earlier attempt reached the
	// server and the record is already gone.
	sawTransport := false
	err = r.retry(ctx, func() error {
		err := r.remote.Delete(ctx, id)
		switch client.KindOf(err) {
		case client.KindTransport:
			sawTransport = true
		case client.KindNotFound:
			if sawTransport {
				return nil
			}
		}
		return err
	})
	if err != nil {
		r.mu.Lock()
		r.insertAt(i, original)
		r.mu.Unlock()
		r.fail(OpDelete, id, StateOptimistic, err)
		return err
	}

	r.transition(OpDelete, id, StateOptimistic, StateConfirmed)
	return nil
}

// Snapshot returns a copy of the working list in display order.
func (r *Replica) Snapshot() []core.Expense {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Expense, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Replica) CategoryTotals() []analytics.CategoryTotal {
	return analytics.CategoryTotals(r.Snapshot())
}

func (r *Replica) MonthlyTotals() []analytics.MonthlyTotal {
	return analytics.MonthlyTotals(r.Snapshot())
}

func (r *Replica) Total() core.Money {
	return analytics.Total(r.Snapshot())
}

// acquire resolves id through confirmed tokens and takes its lock. If the
// token is confirmed while waiting, the lock is retaken on the service id.
func (r *Replica) acquire(ctx context.Context, id string) (string, func(), error) {
	for {
		resolved := r.resolve(id)
		release, err := r.locks.acquire(ctx, resolved)
		if err != nil {
			return "", nil, err
		}
		if r.resolve(id) == resolved {
			return resolved, release, nil
		}
		release()
	}
}

func (r *Replica) resolve(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if actual, ok := r.aliases[id]; ok {
		return actual
	}
	return id
}

// retry runs fn until it succeeds, fails with a non-transport error, the
// attempts are used up or ctx ends.
func (r *Replica) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if err = fn(); err == nil || !client.Retryable(err) {
			return err
		}
		if attempt == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.backoff << attempt):
		}
	}
	return err
}

func (r *Replica) fail(op Op, id string, from State, err error) {
	r.transition(op, id, from, StateRolledBack)
	r.alerter.Alert(Failure{Op: op, ID: id, Kind: client.KindOf(err), Err: err})
}

func (r *Replica) transition(op Op, id string, from, to State) {
	if r.observe != nil {
		r.observe(Transition{Op: op, ID: id, From: from, To: to})
	}
}

// indexOf and insertAt must be called with mu held.
func (r *Replica) indexOf(id string) int {
	for i, e := range r.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (r *Replica) insertAt(i int, e core.Expense) {
	if i > len(r.items) {
		i = len(r.items)
	}
	r.items = append(r.items, core.Expense{})
	copy(r.items[i+1:], r.items[i:])
	r.items[i] = e
}
