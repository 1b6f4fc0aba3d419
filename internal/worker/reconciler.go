package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/sheets/google"
)

// Source lists the authoritative expense collection.
type Source interface {
	List(ctx context.Context) ([]core.Expense, error)
}

type ReconcilerConfig struct {
	// Interval between full comparisons. Zero disables the loop.
	Interval time.Duration
	// Timeout bounds one reconciliation pass.
	Timeout time.Duration
}

func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval: 5 * time.Minute,
		Timeout:  time.Minute,
	}
}

// Reconciler rewrites the mirror whenever it no longer matches the store,
// covering events lost while the worker was down.
type Reconciler struct {
	source Source
	mirror Mirror
	config ReconcilerConfig
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewReconciler(source Source, mirror Mirror, config ReconcilerConfig) *Reconciler {
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcilerConfig().Timeout
	}
	return &Reconciler{
		source: source,
		mirror: mirror,
		config: config,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// Start runs one pass immediately and then one per interval until Stop or
// ctx is done. Starting twice is an error.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	r.stopCh, r.doneCh, r.stopOnce = stopCh, doneCh, new(sync.Once)
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	r.logger.InfoContext(ctx, "Reconciler started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := r.stopCh, r.doneCh, r.stopOnce
	r.mu.Unlock()

	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Reconciler stopped")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}

	r.finish(doneCh)
	return nil
}

// finish clears running unless a newer Start already replaced the loop.
func (r *Reconciler) finish(doneCh chan struct{}) {
	r.mu.Lock()
	if r.doneCh == doneCh {
		r.running = false
	}
	r.mu.Unlock()
}

func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer r.finish(doneCh)

	r.pass(ctx)
	if r.config.Interval <= 0 {
		select {
		case <-stopCh:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Reconciler) pass(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	if _, err := r.ReconcileOnce(ctx); err != nil {
		r.logger.WarnContext(ctx, "Reconciliation failed", applog.FieldError, err.Error())
	}
}

// ReconcileOnce compares the store with the mirror and rewrites the mirror
// when they differ. It reports whether a rewrite happened.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (bool, error) {
	want, err := r.source.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list expenses: %w", err)
	}
	have, err := r.mirror.ReadAll(ctx)
	if err != nil {
		return false, fmt.Errorf("read mirror: %w", err)
	}
	if google.Equal(want, have) {
		r.logger.DebugContext(ctx, "Mirror up to date", "count", len(want))
		return false, nil
	}

	if err := r.mirror.Replace(ctx, want); err != nil {
		return false, fmt.Errorf("rewrite mirror: %w", err)
	}
	r.logger.InfoContext(ctx, "Mirror rewritten",
		applog.FieldOperation, applog.OpMirror,
		"expected", len(want),
		"found", len(have))
	return true, nil
}
