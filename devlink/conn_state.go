package devlink

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-devlink/logger"
)

// ConnState represents the state of a device link.
type ConnState uint32

const (
	// Disconnected indicates that no worker is serving the device.
	Disconnected ConnState = iota
	// Connected indicates that Start was called and the worker has not stopped or failed.
	// It is entered optimistically, before the link is actually opened.
	Connected
)

// IsConnected returns if the state is Connected.
func (cs ConnState) IsConnected() bool { return cs == Connected }

// IsDisconnected returns if the state is Disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == Disconnected }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the connection state of a device changes.
//
// Note: handlers run on the goroutine that changed the state (the caller of Start or Stop,
// or the worker on failure) unless the manager was created with WithExecutor.
type ConnStateChangeHandler func(dev *Device, prevState ConnState, newState ConnState)

// connStateMgr owns the connection state of one device.
type connStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	dev      *Device
	logger   logger.Logger
	invoke   func(func())
	handlers []ConnStateChangeHandler
}

func newConnStateMgr(dev *Device, l logger.Logger, invoke func(func()), handlers ...ConnStateChangeHandler) *connStateMgr {
	cs := &connStateMgr{
		dev:      dev,
		logger:   l,
		invoke:   invoke,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.cond = sync.NewCond(&cs.mu)
	cs.addHandler(handlers...)
	cs.state.Store(uint32(Disconnected))

	return cs
}

// State returns the current connection state.
func (cs *connStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

func (cs *connStateMgr) addHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			cs.handlers = append(cs.handlers, h)
		}
	}
}

// waitState waits for the state to reach the desired state or until ctx is done.
func (cs *connStateMgr) waitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stopFunc()

	for cs.State() != state {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cs.cond.Wait()
	}

	return nil
}

// set moves to newState and wakes up waiters. It reports false when the state already
// is newState. Handlers are notified separately by notify so that the caller can release
// its own locks first.
func (cs *connStateMgr) set(newState ConnState) (ConnState, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	prevState := cs.State()
	if prevState == newState {
		return prevState, false
	}

	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()

	return prevState, true
}

// notify invokes the handlers registered at the time of the call.
func (cs *connStateMgr) notify(prevState ConnState, newState ConnState) {
	cs.mu.Lock()
	handlers := make([]ConnStateChangeHandler, len(cs.handlers))
	copy(handlers, cs.handlers)
	cs.mu.Unlock()

	cs.logger.Info("connection state changed", "prevState", prevState, "newState", newState)

	for _, h := range handlers {
		cs.invoke(func() { h(cs.dev, prevState, newState) })
	}
}
