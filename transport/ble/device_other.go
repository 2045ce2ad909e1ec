//go:build !linux

package ble

func initDevice() error {
	return ErrUnsupportedPlatform
}
