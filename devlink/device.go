package devlink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arloliu/go-devlink/wire"
)

// TransportKind selects the physical link of a device.
type TransportKind uint8

const (
	// SerialTransport is a serial port, identified by its port name.
	SerialTransport TransportKind = iota + 1
	// BLETransport is a Bluetooth Low Energy peripheral, identified by its address.
	BLETransport
)

// String returns "serial" or "ble".
func (k TransportKind) String() string {
	switch k {
	case SerialTransport:
		return "serial"
	case BLETransport:
		return "ble"
	default:
		return "unknown"
	}
}

// ParseTransportKind parses a transport name. It accepts "serial" or "ser" for serial
// ports and "ble", "bt" or "bluetooth" for BLE, case-insensitively.
func ParseTransportKind(s string) (TransportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "serial", "ser":
		return SerialTransport, nil
	case "ble", "bt", "bluetooth":
		return BLETransport, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTransport, s)
	}
}

// DataHandler receives every decoded message of a device.
type DataHandler func(msg *wire.Message)

// Device describes how to reach one device and carries its two events: data received
// and connection state changed. A Device is immutable once created.
type Device struct {
	kind          TransportKind
	address       string
	baudRate      int
	key           string
	dataHandler   DataHandler
	stateHandlers []ConnStateChangeHandler
}

// NewDevice creates a device descriptor. address is the port name of a serial device or
// the address of a BLE peripheral.
//
// The address and, for serial devices, the baud rate are checked when the link is opened,
// so a descriptor for a device that is not configured yet can still be created.
func NewDevice(kind TransportKind, address string, opts ...DeviceOption) (*Device, error) {
	if kind != SerialTransport && kind != BLETransport {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTransport, kind)
	}

	dev := &Device{kind: kind, address: address}
	for _, opt := range opts {
		if err := opt.apply(dev); err != nil {
			return nil, err
		}
	}

	return dev, nil
}

// Kind returns the transport kind.
func (d *Device) Kind() TransportKind { return d.kind }

// Address returns the port name or BLE address.
func (d *Device) Address() string { return d.address }

// BaudRate returns the serial baud rate and whether one was configured.
func (d *Device) BaudRate() (int, bool) { return d.baudRate, d.baudRate > 0 }

// Key returns the optional label of the device.
func (d *Device) Key() string { return d.key }

// DataHandler returns the data received handler, or nil.
func (d *Device) DataHandler() DataHandler { return d.dataHandler }

// ConnStateHandlers returns a copy of the connection state changed handlers.
func (d *Device) ConnStateHandlers() []ConnStateChangeHandler {
	handlers := make([]ConnStateChangeHandler, len(d.stateHandlers))
	copy(handlers, d.stateHandlers)

	return handlers
}

// String returns "<kind>:<address>".
func (d *Device) String() string {
	return d.kind.String() + ":" + d.address
}

// DeviceOption is a functional option for NewDevice.
type DeviceOption interface {
	apply(*Device) error
}

type deviceOptFunc func(*Device) error

func (f deviceOptFunc) apply(d *Device) error { return f(d) }

// WithBaudRate sets the serial baud rate.
func WithBaudRate(rate int) DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		if rate <= 0 {
			return fmt.Errorf("devlink: baud rate %d must be positive", rate)
		}
		d.baudRate = rate

		return nil
	})
}

// WithKey sets a label carried in the device's log records.
func WithKey(key string) DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		d.key = key
		return nil
	})
}

// WithDataHandler sets the handler receiving every decoded message.
func WithDataHandler(h DataHandler) DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		if h == nil {
			return errors.New("devlink: data handler must not be nil")
		}
		d.dataHandler = h

		return nil
	})
}

// WithConnStateHandler adds connection state changed handlers.
func WithConnStateHandler(handlers ...ConnStateChangeHandler) DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		for _, h := range handlers {
			if h == nil {
				return errors.New("devlink: connection state handler must not be nil")
			}
		}
		d.stateHandlers = append(d.stateHandlers, handlers...)

		return nil
	})
}
