// Package shutdownqueue collects cleanup tasks during startup and runs them
// in LIFO order on shutdown, mirroring defer semantics across packages.
package shutdownqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Task is a single shutdown step. It must respect ctx cancellation.
type Task func(ctx context.Context) error

type queue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
}

var q queue

// Add registers a task to run on Shutdown. Tasks registered after Shutdown
// has started are dropped. Add(nil) is a no-op.
func Add(task Task) {
	if task == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.tasks = append(q.tasks, task)
}

// Shutdown runs all registered tasks in reverse registration order. Every
// task runs even if earlier ones fail; failures are joined into one error.
func Shutdown(ctx context.Context) error {
	q.mu.Lock()

	q.closed = true
	tasks := q.tasks
	q.tasks = nil

	q.mu.Unlock()

	var errs []error

	for i := len(tasks) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("shutdown interrupted: %w", err))
			break
		}

		err := tasks[i](ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
