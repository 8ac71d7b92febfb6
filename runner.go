package organizer

import (
	"context"
	"fmt"
	"sync/atomic"
)

// TaskRunner runs at most one background task at a time. The presentation
// layer submits scan, execute and prune through it so the foreground stays
// responsive while the filesystem work runs.
type TaskRunner struct {
	busy atomic.Bool
}

func NewTaskRunner() *TaskRunner {
	return &TaskRunner{}
}

// Busy reports whether a task is in flight.
func (r *TaskRunner) Busy() bool {
	return r.busy.Load()
}

// Task is the handle to a submitted unit of work.
type Task[T any] struct {
	Name   string
	done   chan struct{}
	result T
	err    error
}

// Done is closed once the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx ends. Cancelling ctx does not
// stop the task itself.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit starts fn in the background. It returns ErrBusy if the runner is
// still working on an earlier task. A panic in fn is returned as the task's
// error and frees the slot.
func Submit[T any](r *TaskRunner, name string, fn func() (T, error)) (*Task[T], error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: cannot start %s", ErrBusy, name)
	}

	task := &Task[T]{Name: name, done: make(chan struct{})}
	go func() {
		defer func() {
			if p := recover(); p != nil {
				task.err = fmt.Errorf("task %s panicked: %v", name, p)
			}
			r.busy.Store(false)
			close(task.done)
		}()
		task.result, task.err = fn()
	}()
	return task, nil
}
