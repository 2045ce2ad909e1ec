// Package task runs the background workers of a connection manager.
//
// A Manager owns a parent context and tracks every goroutine it starts so that the
// owner can cancel them and wait for their termination. Each task gets its own
// cancelable context, its result is delivered to an exit callback, and a panic inside
// the task body is recovered and reported as an error instead of crashing the process.
package task

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-devlink/logger"
)

// ErrPanic is wrapped by the error reported for a task whose body panicked.
var ErrPanic = errors.New("task: panic recovered")

// ErrStopped is returned by Go when the Manager has been stopped.
var ErrStopped = errors.New("task: manager stopped")

// Func is the body of a task. It should return when ctx is done.
type Func func(ctx context.Context) error

// ExitFunc receives the result of a task once its body has returned.
// It runs on the task goroutine.
type ExitFunc func(err error)

// Manager starts and tracks task goroutines.
//
// Example:
//
//	mgr := task.NewManager(ctx, log)
//	t, err := mgr.Go("serialWorker", func(ctx context.Context) error {
//	    return loop(ctx)
//	}, func(err error) {
//	    log.Info("worker exited", "error", err)
//	})
//	...
//	t.Cancel()
//	mgr.Wait()
type Manager struct {
	pctx   context.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger logger.Logger
	wg     sync.WaitGroup
	count  atomic.Int32
	mu     sync.RWMutex // protects ctx and cancel
}

// NewManager creates a Manager deriving task contexts from ctx.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	if l == nil {
		l = logger.GetLogger()
	}
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Task is a handle of a running task.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Cancel cancels the task context. It does not wait for the task to exit.
func (t *Task) Cancel() { t.cancel() }

// Done is closed once the task body and its exit callback have returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task result. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	<-t.done
	return t.err
}

// Go starts fn in a new goroutine. onExit, when not nil, is invoked with the
// result of fn after it returns, including a recovered panic.
func (mgr *Manager) Go(name string, fn Func, onExit ExitFunc) (*Task, error) {
	mgr.mu.RLock()
	parent := mgr.ctx
	mgr.mu.RUnlock()

	if parent.Err() != nil {
		return nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(parent)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}

	mgr.wg.Add(1)
	mgr.count.Add(1)
	mgr.logger.Debug("task started", "name", name, "task_count", mgr.TaskCount())

	go func() {
		defer mgr.wg.Done()
		defer close(t.done)
		defer cancel()

		t.err = mgr.run(ctx, name, fn)

		mgr.count.Add(-1)
		mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount(), "error", t.err)

		if onExit != nil {
			mgr.callExit(name, onExit, t.err)
		}
	}()

	return t, nil
}

// Stop cancels every running task.
func (mgr *Manager) Stop() {
	mgr.mu.Lock()
	mgr.cancel()
	mgr.mu.Unlock()
}

// Wait blocks until every started task has exited, then re-arms the Manager so
// that new tasks can be started after a Stop.
func (mgr *Manager) Wait() {
	mgr.wg.Wait()

	mgr.mu.Lock()
	if mgr.ctx.Err() != nil {
		mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	}
	mgr.mu.Unlock()
}

// TaskCount returns the number of running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) run(ctx context.Context, name string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w in %s: %v", ErrPanic, name, r)
		}
	}()

	return fn(ctx)
}

func (mgr *Manager) callExit(name string, onExit ExitFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task exit handler", "name", name, "panic", r)
		}
	}()

	onExit(err)
}
