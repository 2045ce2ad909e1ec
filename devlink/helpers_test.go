package devlink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-devlink/logger"
	"github.com/arloliu/go-devlink/transport"
	"github.com/stretchr/testify/require"
)

var errLinkLost = errors.New("link lost")

// fakeTransport replays inbound lines pushed by the test and records outbound writes.
type fakeTransport struct {
	name    string
	openErr error
	inbound chan []byte
	readErr chan error
	writes  chan string

	opened atomic.Int32
	closed atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		name:    "fake:dev0",
		inbound: make(chan []byte, 16),
		readErr: make(chan error, 1),
		writes:  make(chan string, 16),
	}
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.opened.Add(1)
	return f.openErr
}

func (f *fakeTransport) Write(_ context.Context, p []byte) error {
	f.writes <- string(p)
	return nil
}

func (f *fakeTransport) ReadLine(ctx context.Context) ([]byte, error) {
	select {
	case line := <-f.inbound:
		return line, nil
	case err := <-f.readErr:
		return nil, err
	case <-ctx.Done():
		return nil, nil
	case <-time.After(2 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeTransport) Close() error {
	f.closed.Add(1)
	return nil
}

func (f *fakeTransport) String() string { return f.name }

// fakeFactory hands out the transports in order and counts the calls.
type fakeFactory struct {
	mu         sync.Mutex
	transports []*fakeTransport
	calls      int
}

func (f *fakeFactory) create(*Device) (transport.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tr := f.transports[f.calls%len(f.transports)]
	f.calls++

	return tr, nil
}

func (f *fakeFactory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// stateRecorder collects connection state changes.
type stateRecorder struct {
	mu     sync.Mutex
	events []ConnState
}

func (r *stateRecorder) handle(_ *Device, _ ConnState, newState ConnState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, newState)
}

func (r *stateRecorder) Events() []ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]ConnState, len(r.events))
	copy(events, r.events)

	return events
}

func newTestManager(t *testing.T, trs []*fakeTransport, devOpts []DeviceOption, opts ...Option) (*Manager, *fakeFactory) {
	t.Helper()
	require := require.New(t)

	dev, err := NewDevice(SerialTransport, "/dev/ttyTEST", append([]DeviceOption{WithBaudRate(9600)}, devOpts...)...)
	require.NoError(err)

	factory := &fakeFactory{transports: trs}
	opts = append([]Option{
		WithLogger(logger.NewPermissiveMockLogger()),
		WithTransportFactory(factory.create),
		WithIdleInterval(time.Millisecond),
	}, opts...)

	mgr, err := NewManager(dev, opts...)
	require.NoError(err)
	t.Cleanup(mgr.Close)

	return mgr, factory
}

func waitFailure(t *testing.T, mgr *Manager) error {
	t.Helper()

	select {
	case err := <-mgr.Failures():
		return err
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no failure reported")
		return nil
	}
}

func waitWrite(t *testing.T, tr *fakeTransport) string {
	t.Helper()

	select {
	case s := <-tr.writes:
		return s
	case <-time.After(2 * time.Second):
		require.FailNow(t, "nothing written")
		return ""
	}
}
