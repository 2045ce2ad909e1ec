// Package transport defines the contract shared by the serial and BLE links.
//
// A Transport is driven by a single worker goroutine: Open once, then any number
// of Write and ReadLine calls, then Close. Implementations are not required to be
// safe for concurrent use.
package transport

import (
	"context"
	"fmt"
)

// Transport is a line-oriented link to one device.
type Transport interface {
	// Open establishes the link. It may block, e.g. for a device warmup, and returns
	// early when ctx is done.
	Open(ctx context.Context) error

	// Write sends p to the device.
	Write(ctx context.Context, p []byte) error

	// ReadLine returns the next inbound chunk of text, or nil when nothing arrived
	// within the transport's polling window. The returned bytes are raw and still
	// need framing with wire.StripLine.
	ReadLine(ctx context.Context) ([]byte, error)

	// Close releases the link. It is safe to call Close more than once.
	Close() error

	// String describes the link for logging, e.g. "serial:/dev/ttyUSB0".
	String() string
}

// OpError is the error returned by transports. It records which link and which
// operation failed, like net.OpError.
type OpError struct {
	// Transport is the link description, e.g. "serial:/dev/ttyUSB0".
	Transport string
	// Op is the failed operation: "open", "discover", "write", "read" or "close".
	Op string
	// Err is the underlying error.
	Err error
}

// NewOpError wraps err, returning nil when err is nil.
func NewOpError(transport, op string, err error) error {
	if err == nil {
		return nil
	}

	return &OpError{Transport: transport, Op: op, Err: err}
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Transport, e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
