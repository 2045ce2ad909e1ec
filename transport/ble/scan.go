package ble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goble "github.com/go-ble/ble"
	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultScanDuration is the scan window used when Scan is given a non-positive duration.
const DefaultScanDuration = 5 * time.Second

// Peripheral is an advertising BLE device seen during a scan.
type Peripheral struct {
	Address string
	Name    string
}

// advertisement is the subset of goble.Advertisement used by Scan.
type advertisement interface {
	LocalName() string
	Addr() goble.Addr
}

// allow tests to replace the radio
var scanFunc = func(ctx context.Context, handle func(advertisement)) error {
	if err := initDevice(); err != nil {
		return err
	}

	return goble.Scan(ctx, true, func(a goble.Advertisement) { handle(a) }, nil)
}

// Scan listens for advertisements for duration and returns the peripherals seen, sorted
// by address. A peripheral advertising under several names keeps the last non-empty one.
func Scan(ctx context.Context, duration time.Duration) ([]Peripheral, error) {
	if duration <= 0 {
		duration = DefaultScanDuration
	}

	scanCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	seen := xsync.NewMapOf[string, string]()
	err := scanFunc(scanCtx, func(a advertisement) {
		addr := a.Addr().String()
		name := a.LocalName()
		seen.Compute(addr, func(old string, loaded bool) (string, bool) {
			if name == "" && loaded {
				return old, false
			}
			return name, false
		})
	})
	// the scan window elapsing is the normal way a scan ends
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	peripherals := make([]Peripheral, 0, seen.Size())
	seen.Range(func(addr, name string) bool {
		peripherals = append(peripherals, Peripheral{Address: addr, Name: name})
		return true
	})
	sort.Slice(peripherals, func(i, j int) bool { return peripherals[i].Address < peripherals[j].Address })

	return peripherals, nil
}
