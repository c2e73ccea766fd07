package ai

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Limiter gates concurrent model calls and accounts token usage against an
// optional budget. A single limiter is shared by every model participating
// in a run so the budget covers the run as a whole.
//
// Waiters are admitted in FIFO order, so a long-running stage cannot starve
// later ones.
type Limiter struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	budget int // total tokens, 0 means unlimited
	usage  Usage
	calls  int
}

// NewLimiter creates a limiter admitting at most maxConcurrent calls at a
// time. tokenBudget caps the total tokens consumed across all calls; 0
// disables the cap.
func NewLimiter(maxConcurrent int, tokenBudget int) *Limiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Limiter{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		budget: tokenBudget,
	}
}

// Acquire blocks until a slot is free or ctx is done. It fails fast with
// ErrBudgetExceeded once the token budget is spent, without consuming a
// slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.checkBudget(); err != nil {
		return err
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire model slot: %w", err)
	}
	return nil
}

// Release frees the slot taken by Acquire.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Record adds a completed call's usage to the running totals.
func (l *Limiter) Record(u Usage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage = l.usage.Add(u)
	l.calls++
}

// Snapshot returns the accumulated usage and the number of recorded calls.
func (l *Limiter) Snapshot() (Usage, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage, l.calls
}

func (l *Limiter) checkBudget() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.budget > 0 && l.usage.TotalTokens >= l.budget {
		return fmt.Errorf("%w: %d of %d tokens used", ErrBudgetExceeded, l.usage.TotalTokens, l.budget)
	}
	return nil
}
