package devlink

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/arloliu/go-devlink/transport/ble"
	"github.com/arloliu/go-devlink/transport/serial"
)

// DeviceInfo is a device found by ListDevices.
type DeviceInfo struct {
	// Address is the port name or BLE address to pass to NewDevice.
	Address string
	// Name is the base name of a serial port or the advertised name of a BLE peripheral.
	// It may be empty.
	Name string
}

// allow tests to replace the hardware
var (
	listSerialPorts = serial.ListPorts
	scanBLE         = ble.Scan
)

// ListDevices enumerates the serial ports, or scans for BLE peripherals during
// DefaultScanDuration.
func ListDevices(ctx context.Context, kind TransportKind) ([]DeviceInfo, error) {
	return listDevices(ctx, kind, DefaultScanDuration)
}

// ListDevices enumerates devices of kind, scanning BLE for the configured scan duration.
func (m *Manager) ListDevices(ctx context.Context, kind TransportKind) ([]DeviceInfo, error) {
	return listDevices(ctx, kind, m.cfg.scanDuration)
}

func listDevices(ctx context.Context, kind TransportKind, scanDuration time.Duration) ([]DeviceInfo, error) {
	switch kind {
	case SerialTransport:
		ports, err := listSerialPorts()
		if err != nil {
			return nil, err
		}

		infos := make([]DeviceInfo, 0, len(ports))
		for _, p := range ports {
			infos = append(infos, DeviceInfo{Address: p, Name: filepath.Base(p)})
		}

		return infos, nil

	case BLETransport:
		peripherals, err := scanBLE(ctx, scanDuration)
		if err != nil {
			return nil, err
		}

		infos := make([]DeviceInfo, 0, len(peripherals))
		for _, p := range peripherals {
			infos = append(infos, DeviceInfo{Address: p.Address, Name: p.Name})
		}

		return infos, nil

	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownTransport, kind)
	}
}
