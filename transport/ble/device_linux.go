//go:build linux

package ble

import (
	"sync"

	goble "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

var (
	deviceOnce sync.Once
	deviceErr  error
)

// initDevice opens the default HCI adapter once per process.
func initDevice() error {
	deviceOnce.Do(func() {
		d, err := linux.NewDevice()
		if err != nil {
			deviceErr = err
			return
		}
		goble.SetDefaultDevice(d)
	})

	return deviceErr
}
