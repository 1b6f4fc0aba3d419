package replica

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// idLocks hands out one FIFO lock per record id. Entries are dropped once
// nobody holds or waits for them.
type idLocks struct {
	mu sync.Mutex
	m  map[string]*idLock
}

type idLock struct {
	sem  *semaphore.Weighted
	refs int
}

func (l *idLocks) acquire(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.m[id]
	if !ok {
		lk = &idLock{sem: semaphore.NewWeighted(1)}
		l.m[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	if err := lk.sem.Acquire(ctx, 1); err != nil {
		l.unref(id, lk)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			lk.sem.Release(1)
			l.unref(id, lk)
		})
	}, nil
}

func (l *idLocks) unref(id string, lk *idLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.m, id)
	}
}

func (l *idLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
