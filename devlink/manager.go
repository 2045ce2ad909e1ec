package devlink

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-devlink/dispatch"
	"github.com/arloliu/go-devlink/internal/queue"
	"github.com/arloliu/go-devlink/internal/task"
	"github.com/arloliu/go-devlink/logger"
)

// Manager connects to one device and runs its worker.
//
// Start switches the manager to Connected right away and spawns the worker, which opens
// the link, then alternates between writing one queued line and reading one inbound line.
// Decoded messages are routed to the registered consumers. Stop switches back to
// Disconnected; the worker notices on its next iteration and releases the link.
//
// A worker failure runs the Stop transition and is then reported on Failures and to the
// failure handlers. All methods are safe for concurrent use.
type Manager struct {
	dev        *Device
	cfg        *config
	logger     logger.Logger
	dispatcher *dispatch.Dispatcher
	queue      *queue.Queue[string]
	stateMgr   *connStateMgr
	taskMgr    *task.Manager
	metrics    LinkMetrics
	failures   chan error

	mu     sync.Mutex // serializes Start and Stop, protects worker
	gen    atomic.Uint64
	worker *task.Task

	failureMu       sync.RWMutex
	failureHandlers []FailureHandler
}

// NewManager creates a Disconnected manager for dev.
func NewManager(dev *Device, opts ...Option) (*Manager, error) {
	if dev == nil {
		return nil, ErrInvalidDevice
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	l := cfg.logger.With("device", dev.String())
	if dev.key != "" {
		l = l.With("key", dev.key)
	}

	m := &Manager{
		dev:             dev,
		cfg:             cfg,
		logger:          l,
		dispatcher:      dispatch.New(),
		queue:           queue.New[string](),
		failures:        make(chan error, cfg.failureQueueSize),
		failureHandlers: append([]FailureHandler(nil), cfg.failureHandlers...),
	}
	m.stateMgr = newConnStateMgr(dev, l, m.invoke, dev.stateHandlers...)
	m.taskMgr = task.NewManager(context.Background(), l)

	if dev.dataHandler != nil {
		m.dispatcher.SetRawHandler(dispatch.RawHandler(dev.dataHandler))
	}

	return m, nil
}

// Device returns the device descriptor.
func (m *Manager) Device() *Device { return m.dev }

// Metrics returns the link metrics.
func (m *Manager) Metrics() *LinkMetrics { return &m.metrics }

// State returns the current connection state.
func (m *Manager) State() ConnState { return m.stateMgr.State() }

// IsConnected returns if the current state is Connected.
func (m *Manager) IsConnected() bool { return m.stateMgr.State().IsConnected() }

// WaitState waits until the connection state is state or ctx is done.
func (m *Manager) WaitState(ctx context.Context, state ConnState) error {
	return m.stateMgr.waitState(ctx, state)
}

// RegisterField routes every value of the field key to h.
func (m *Manager) RegisterField(key string, h dispatch.FieldHandler) error {
	return m.dispatcher.Register(dispatch.Single(key, h))
}

// RegisterGroup calls h with the values of keys, in key order, once every key has been
// received since the previous call. The values may arrive across several lines.
func (m *Manager) RegisterGroup(keys []string, h dispatch.GroupHandler) error {
	return m.dispatcher.Register(dispatch.Group(keys, h))
}

// Register adds a registration built with dispatch.Single or dispatch.Group.
func (m *Manager) Register(reg dispatch.Registration) error {
	return m.dispatcher.Register(reg)
}

// AddConnStateChangeHandler adds handlers invoked on every connection state change.
func (m *Manager) AddConnStateChangeHandler(handlers ...ConnStateChangeHandler) {
	m.stateMgr.addHandler(handlers...)
}

// AddFailureHandler adds handlers invoked when the worker fails.
func (m *Manager) AddFailureHandler(handlers ...FailureHandler) {
	m.failureMu.Lock()
	defer m.failureMu.Unlock()

	for _, h := range handlers {
		if h != nil {
			m.failureHandlers = append(m.failureHandlers, h)
		}
	}
}

// Failures returns the channel receiving the error of every failed worker. When nobody
// drains it and it is full, further failures are only logged and passed to the failure handlers.
func (m *Manager) Failures() <-chan error { return m.failures }

// Start switches to Connected, fires the connection state event and spawns the worker.
// It returns ErrAlreadyConnected, without spawning anything, when already connected.
// When a connection state handler panics, Start switches back to Disconnected and
// returns ErrHandlerPanic.
//
// Start does not wait for the link to open; an open failure is reported like any other
// worker failure.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.stateMgr.State().IsConnected() {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}

	gen := m.gen.Add(1)
	m.dispatcher.Reset()
	prevState, _ := m.stateMgr.set(Connected)
	m.metrics.incStartCount()
	m.mu.Unlock()

	m.logger.Info("connection started", "transport", m.dev.kind)
	if err := m.notifySafe(prevState, Connected); err != nil {
		m.rollbackStart(gen)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// a handler may have stopped the connection already
	if m.gen.Load() != gen {
		return nil
	}

	prev := m.worker
	t, err := m.taskMgr.Go("worker", func(ctx context.Context) error {
		return m.runWorker(ctx, gen, prev)
	}, func(err error) {
		m.onWorkerExit(gen, err)
	})
	if err != nil {
		return fmt.Errorf("devlink: spawn worker: %w", err)
	}
	m.worker = t

	return nil
}

// rollbackStart returns to Disconnected after a failed Start, unless the connection was
// already stopped or restarted meanwhile.
func (m *Manager) rollbackStart(gen uint64) {
	m.mu.Lock()
	if m.gen.Load() != gen {
		m.mu.Unlock()
		return
	}
	prevState, changed := m.stopLocked()
	m.mu.Unlock()

	if changed {
		m.logger.Info("connection stopped")
		_ = m.notifySafe(prevState, Disconnected)
	}
}

// notifySafe fires the connection state event and turns a handler panic into ErrHandlerPanic.
func (m *Manager) notifySafe(prevState ConnState, newState ConnState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("connection state handler panicked", "state", newState, "panic", r)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	m.stateMgr.notify(prevState, newState)

	return nil
}

// Stop switches to Disconnected and fires the connection state event. The worker exits
// after the I/O call in progress returns; Stop does not wait for it, use Wait for that.
// Lines still queued are kept for the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	prevState, changed := m.stopLocked()
	m.mu.Unlock()

	if changed {
		m.logger.Info("connection stopped")
		m.stateMgr.notify(prevState, Disconnected)
	}
}

// stopLocked invalidates the running worker and switches to Disconnected.
func (m *Manager) stopLocked() (ConnState, bool) {
	m.gen.Add(1)
	if m.worker != nil {
		m.worker.Cancel()
	}

	return m.stateMgr.set(Disconnected)
}

// Send queues text for the worker. The text is trimmed; empty text is ignored. It reports
// false when the text was not queued, in particular when the manager is not connected.
func (m *Manager) Send(text string) bool {
	if !m.IsConnected() {
		m.metrics.incSendDropCount()
		m.logger.Debug("send dropped, not connected", "text", text)

		return false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	m.queue.Enqueue(text)
	m.metrics.setQueueLen(m.queue.Len())

	return true
}

// Wait blocks until every worker has exited. Like Close, it must not be called from a
// consumer or a handler.
func (m *Manager) Wait() {
	m.taskMgr.Wait()
}

// Close stops the connection and waits for the worker to exit.
//
// Close must not be called from a consumer or a handler, since it waits for the worker
// that is running it; use Stop there.
func (m *Manager) Close() {
	m.Stop()
	m.Wait()
}

// invoke runs fn through the configured executor.
func (m *Manager) invoke(fn func()) {
	if m.cfg.executor != nil {
		m.cfg.executor(fn)
		return
	}
	fn()
}

// onWorkerExit runs on the worker goroutine once the worker body has returned.
func (m *Manager) onWorkerExit(gen uint64, err error) {
	if err == nil {
		m.logger.Debug("worker exited")
		return
	}

	if errors.Is(err, task.ErrPanic) {
		err = fmt.Errorf("%w: %w", ErrWorkerPanic, err)
	}

	m.mu.Lock()
	current := m.gen.Load() == gen
	var prevState ConnState
	var changed bool
	if current {
		prevState, changed = m.stopLocked()
	}
	m.mu.Unlock()

	if !current {
		m.logger.Debug("ignore failure of a stopped worker", "error", err)
		return
	}

	m.metrics.incFailureCount()
	m.logger.Error("worker failed", "error", err)

	if changed {
		m.stateMgr.notify(prevState, Disconnected)
	}

	m.publishFailure(err)
}

func (m *Manager) publishFailure(err error) {
	select {
	case m.failures <- err:
	default:
		m.logger.Warn("failure channel is full, drop failure", "error", err)
	}

	m.failureMu.RLock()
	handlers := make([]FailureHandler, len(m.failureHandlers))
	copy(handlers, m.failureHandlers)
	m.failureMu.RUnlock()

	for _, h := range handlers {
		m.invoke(func() { h(m.dev, err) })
	}
}
