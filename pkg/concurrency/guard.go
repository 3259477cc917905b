package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("a transfer is already running")

// ConcurrencyGuard lets at most one task run at a time. A second caller is
// turned away with ErrBusy rather than queued.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext is Execute for tasks that take a context. A context
// that is already done is reported without running the task.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task(ctx)
}

// Busy reports whether a task is running right now.
func (g *ConcurrencyGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isBusy
}

func (g *ConcurrencyGuard) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}
