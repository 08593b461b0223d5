package orchestration

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/semaphore"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/observability"
)

// DefaultPoolSize is the worker count when none is configured.
const DefaultPoolSize = 2

// PanicError is returned by Pool.Do when the task panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Pool bounds how many generation tasks run at once across all sessions.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with size workers.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Do waits for a free worker and runs fn on the calling goroutine. It returns
// ctx's error if no worker frees up before ctx ends, and a *PanicError if fn
// panics.
func (p *Pool) Do(ctx context.Context, fn func(context.Context)) (err error) {
	observability.AddPoolWaiting(1)
	acquired := p.sem.Acquire(ctx, 1)
	observability.AddPoolWaiting(-1)
	if acquired != nil {
		return acquired
	}
	defer p.sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	fn(ctx)
	return nil
}
