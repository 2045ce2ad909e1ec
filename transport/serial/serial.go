// Package serial implements the serial-port transport on top of go.bug.st/serial.
//
// The link goes through Init (open the port), Warmup (give the device time to boot,
// most boards reset when the port is opened) and then serves line reads and writes
// until it is closed.
package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-devlink/internal/pool"
	"github.com/arloliu/go-devlink/logger"
	"github.com/arloliu/go-devlink/transport"
	bugserial "go.bug.st/serial"
)

const (
	// DefaultWarmup is the grace period between opening the port and the first I/O.
	DefaultWarmup = 2 * time.Second
	// DefaultReadTimeout bounds how long a started line may take to complete.
	DefaultReadTimeout = time.Second
	// DefaultPollInterval is how long a read waits for the first byte of a line.
	DefaultPollInterval = 20 * time.Millisecond

	// MinPollInterval and MaxReadTimeout bound the configurable timings.
	MinPollInterval = time.Millisecond
	MaxReadTimeout  = 30 * time.Second

	readBufferSize = 256
)

var (
	// ErrMissingBaudRate indicates a serial device configured without a baud rate.
	ErrMissingBaudRate = errors.New("serial: baud rate is not configured")
	// ErrMissingPort indicates a serial device configured without a port name.
	ErrMissingPort = errors.New("serial: port name is not configured")
	// ErrNotOpen indicates I/O on a transport that is not open.
	ErrNotOpen = errors.New("serial: port is not open")
)

// port is the subset of bugserial.Port used by the transport.
type port interface {
	SetReadTimeout(t time.Duration) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// allow tests to replace the hardware
var (
	openPort     = func(name string, mode *bugserial.Mode) (port, error) { return bugserial.Open(name, mode) }
	getPortsList = bugserial.GetPortsList
)

// Transport is a serial link. It implements transport.Transport.
type Transport struct {
	portName     string
	baudRate     int
	warmup       time.Duration
	readTimeout  time.Duration
	pollInterval time.Duration
	logger       logger.Logger

	port    port
	buf     []byte
	pending []byte
}

var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport) error

// WithWarmup sets the delay between opening the port and the first I/O.
func WithWarmup(d time.Duration) Option {
	return func(t *Transport) error {
		if d < 0 {
			return fmt.Errorf("serial: negative warmup %v", d)
		}
		t.warmup = d

		return nil
	}
}

// WithReadTimeout sets how long a partially received line may take to complete.
func WithReadTimeout(d time.Duration) Option {
	return func(t *Transport) error {
		if d <= 0 || d > MaxReadTimeout {
			return fmt.Errorf("serial: read timeout %v out of range (0, %v]", d, MaxReadTimeout)
		}
		t.readTimeout = d

		return nil
	}
}

// WithPollInterval sets how long a read waits for the first byte of a line.
func WithPollInterval(d time.Duration) Option {
	return func(t *Transport) error {
		if d < MinPollInterval {
			return fmt.Errorf("serial: poll interval %v below %v", d, MinPollInterval)
		}
		t.pollInterval = d

		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) error {
		if l == nil {
			return errors.New("serial: logger must not be nil")
		}
		t.logger = l

		return nil
	}
}

// New creates a serial transport for portName at baudRate. The port is opened by Open;
// a missing port name or baud rate is reported there.
func New(portName string, baudRate int, opts ...Option) (*Transport, error) {
	t := &Transport{
		portName:     portName,
		baudRate:     baudRate,
		warmup:       DefaultWarmup,
		readTimeout:  DefaultReadTimeout,
		pollInterval: DefaultPollInterval,
		logger:       logger.GetLogger(),
		buf:          make([]byte, readBufferSize),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// String returns "serial:<port>".
func (t *Transport) String() string {
	return "serial:" + t.portName
}

// Open opens the port and waits for the warmup period.
func (t *Transport) Open(ctx context.Context) error {
	if t.portName == "" {
		return transport.NewOpError(t.String(), "open", ErrMissingPort)
	}
	if t.baudRate <= 0 {
		return transport.NewOpError(t.String(), "open", ErrMissingBaudRate)
	}

	p, err := openPort(t.portName, &bugserial.Mode{BaudRate: t.baudRate})
	if err != nil {
		return transport.NewOpError(t.String(), "open", err)
	}

	if err := p.SetReadTimeout(t.pollInterval); err != nil {
		_ = p.Close()
		return transport.NewOpError(t.String(), "open", err)
	}

	t.port = p
	t.pending = t.pending[:0]
	t.logger.Debug("serial port opened, waiting for device warmup",
		"port", t.portName, "baudRate", t.baudRate, "warmup", t.warmup)

	if err := pool.Sleep(ctx, t.warmup); err != nil {
		_ = t.Close()
		return transport.NewOpError(t.String(), "open", err)
	}

	return nil
}

// Write writes all of p to the port.
func (t *Transport) Write(_ context.Context, p []byte) error {
	if t.port == nil {
		return transport.NewOpError(t.String(), "write", ErrNotOpen)
	}

	for len(p) > 0 {
		n, err := t.port.Write(p)
		if err != nil {
			return transport.NewOpError(t.String(), "write", err)
		}
		if n == 0 {
			return transport.NewOpError(t.String(), "write", io.ErrShortWrite)
		}
		p = p[n:]
	}

	return nil
}

// ReadLine returns the next '\n' terminated line including its terminator.
//
// When no byte arrives within the poll interval it returns nil. Once a line has
// started it keeps reading until the terminator or the read timeout, and returns
// whatever was received when the timeout elapses. A partial line is dropped when ctx
// is cancelled.
func (t *Transport) ReadLine(ctx context.Context) ([]byte, error) {
	if t.port == nil {
		return nil, transport.NewOpError(t.String(), "read", ErrNotOpen)
	}

	if line, ok := t.takeLine(); ok {
		return line, nil
	}

	if len(t.pending) == 0 {
		n, err := t.port.Read(t.buf)
		if err != nil {
			return nil, transport.NewOpError(t.String(), "read", err)
		}
		if n == 0 {
			return nil, nil
		}
		t.pending = append(t.pending, t.buf[:n]...)
	}

	deadline := time.Now().Add(t.readTimeout)
	for {
		if line, ok := t.takeLine(); ok {
			return line, nil
		}

		// a partial line is dropped when the caller gave up on it
		if ctx.Err() != nil {
			t.pending = nil
			return nil, nil
		}

		if !time.Now().Before(deadline) {
			line := t.pending
			t.pending = nil

			return line, nil
		}

		n, err := t.port.Read(t.buf)
		if err != nil {
			return nil, transport.NewOpError(t.String(), "read", err)
		}
		t.pending = append(t.pending, t.buf[:n]...)
	}
}

// takeLine pops a complete line from the pending bytes.
func (t *Transport) takeLine() ([]byte, bool) {
	i := bytes.IndexByte(t.pending, '\n')
	if i < 0 {
		return nil, false
	}

	line := make([]byte, i+1)
	copy(line, t.pending[:i+1])
	t.pending = append(t.pending[:0], t.pending[i+1:]...)

	return line, true
}

// Close closes the port.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}

	p := t.port
	t.port = nil
	t.pending = nil

	t.logger.Debug("serial port closed", "port", t.portName)

	return transport.NewOpError(t.String(), "close", p.Close())
}

// ListPorts returns the names of the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}

	return ports, nil
}
