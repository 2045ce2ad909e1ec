// Package ble implements the Bluetooth Low Energy transport on top of go-ble/ble.
//
// The link goes through Connect (dial the peripheral), Discover (pick the first
// characteristic that accepts writes) and then exchanges data on that single
// characteristic: writes go to it and reads poll its value.
package ble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-devlink/logger"
	"github.com/arloliu/go-devlink/transport"
	goble "github.com/go-ble/ble"
)

const (
	// DefaultConnectTimeout bounds dialing a peripheral.
	DefaultConnectTimeout = 10 * time.Second
	// MinConnectTimeout and MaxConnectTimeout bound WithConnectTimeout.
	MinConnectTimeout = 100 * time.Millisecond
	MaxConnectTimeout = 2 * time.Minute
)

var (
	// ErrMissingAddress indicates a BLE device configured without an address.
	ErrMissingAddress = errors.New("ble: device address is not configured")
	// ErrNoWritableCharacteristic indicates a peripheral exposing no characteristic
	// with the write or write-without-response property.
	ErrNoWritableCharacteristic = errors.New("ble: no writable characteristic found")
	// ErrUnsupportedPlatform indicates a platform without a go-ble HCI backend.
	ErrUnsupportedPlatform = errors.New("ble: platform not supported")
	// ErrNotOpen indicates I/O on a transport that is not open.
	ErrNotOpen = errors.New("ble: link is not open")
)

// gattClient is the subset of goble.Client used by the transport.
type gattClient interface {
	DiscoverProfile(force bool) (*goble.Profile, error)
	ReadCharacteristic(c *goble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *goble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
}

// allow tests to replace the radio
var dial = func(ctx context.Context, address string) (gattClient, error) {
	if err := initDevice(); err != nil {
		return nil, err
	}

	return goble.Dial(ctx, goble.NewAddr(address))
}

// Transport is a BLE link. It implements transport.Transport.
type Transport struct {
	address        string
	connectTimeout time.Duration
	logger         logger.Logger

	client gattClient
	char   *goble.Characteristic
	noRsp  bool
}

var _ transport.Transport = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport) error

// WithConnectTimeout sets how long Open waits for the peripheral to accept the connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(t *Transport) error {
		if d < MinConnectTimeout || d > MaxConnectTimeout {
			return fmt.Errorf("ble: connect timeout %v out of range [%v, %v]", d, MinConnectTimeout, MaxConnectTimeout)
		}
		t.connectTimeout = d

		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) error {
		if l == nil {
			return errors.New("ble: logger must not be nil")
		}
		t.logger = l

		return nil
	}
}

// New creates a BLE transport for the peripheral at address. The connection is made by Open.
func New(address string, opts ...Option) (*Transport, error) {
	t := &Transport{
		address:        address,
		connectTimeout: DefaultConnectTimeout,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// String returns "ble:<address>".
func (t *Transport) String() string {
	return "ble:" + t.address
}

// Open connects to the peripheral and selects the data characteristic.
func (t *Transport) Open(ctx context.Context) error {
	if t.address == "" {
		return transport.NewOpError(t.String(), "open", ErrMissingAddress)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	client, err := dial(dialCtx, t.address)
	if err != nil {
		return transport.NewOpError(t.String(), "open", err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return transport.NewOpError(t.String(), "discover", err)
	}

	char := findWritable(profile)
	if char == nil {
		_ = client.CancelConnection()
		return transport.NewOpError(t.String(), "discover", ErrNoWritableCharacteristic)
	}

	t.client = client
	t.char = char
	t.noRsp = char.Property&goble.CharWrite == 0

	t.logger.Debug("ble link connected",
		"address", t.address, "characteristic", char.UUID.String(), "writeWithoutResponse", t.noRsp)

	return nil
}

// findWritable returns the first characteristic, in discovery order, that supports
// write or write-without-response.
func findWritable(p *goble.Profile) *goble.Characteristic {
	if p == nil {
		return nil
	}

	for _, s := range p.Services {
		for _, c := range s.Characteristics {
			if c.Property&(goble.CharWrite|goble.CharWriteNR) != 0 {
				return c
			}
		}
	}

	return nil
}

// Write writes p to the data characteristic, with response when the characteristic supports it.
func (t *Transport) Write(_ context.Context, p []byte) error {
	if t.client == nil {
		return transport.NewOpError(t.String(), "write", ErrNotOpen)
	}

	return transport.NewOpError(t.String(), "write", t.client.WriteCharacteristic(t.char, p, t.noRsp))
}

// ReadLine reads the current value of the data characteristic. An empty or
// whitespace-only value is reported as nil.
func (t *Transport) ReadLine(_ context.Context) ([]byte, error) {
	if t.client == nil {
		return nil, transport.NewOpError(t.String(), "read", ErrNotOpen)
	}

	b, err := t.client.ReadCharacteristic(t.char)
	if err != nil {
		return nil, transport.NewOpError(t.String(), "read", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}

	return b, nil
}

// Close cancels the connection.
func (t *Transport) Close() error {
	if t.client == nil {
		return nil
	}

	client := t.client
	t.client = nil
	t.char = nil

	t.logger.Debug("ble link closed", "address", t.address)

	return transport.NewOpError(t.String(), "close", client.CancelConnection())
}
