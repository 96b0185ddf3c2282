package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/banshee-data/beaconradar/internal/beacon"
)

// Adapter is the part of *bluetooth.Adapter used for scanning.
type Adapter interface {
	Enable() error
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// BLE scans with the host Bluetooth adapter.
type BLE struct {
	adapter Adapter
	handler Handler

	mu      sync.Mutex
	enabled bool
	running bool
	done    chan error
}

// NewBLE creates a source on adapter. A nil adapter uses
// bluetooth.DefaultAdapter.
func NewBLE(adapter Adapter, h Handler) *BLE {
	if adapter == nil {
		adapter = bluetooth.DefaultAdapter
	}
	return &BLE{adapter: adapter, handler: h}
}

// Start enables the adapter on first use and begins a passive scan.
func (b *BLE) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil
	}
	if !b.enabled {
		if err := b.adapter.Enable(); err != nil {
			return fmt.Errorf("enable bluetooth adapter: %w", err)
		}
		b.enabled = true
	}

	done := make(chan error, 1)
	b.done = done
	b.running = true
	go func() {
		err := b.adapter.Scan(b.onResult)
		if err != nil {
			logf("ble scan ended: %v", err)
		}
		done <- err
	}()
	logf("ble source started")
	return nil
}

func (b *BLE) onResult(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
	b.handler(detectionFromScan(r.Address.String(), r.RSSI, r.LocalName(), r.ManufacturerData()))
}

// Stop ends the scan and waits for the scan loop to return. When StopScan
// fails the source stays running, so a later Start does not begin a second
// scan.
func (b *BLE) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return nil
	}

	if err := b.adapter.StopScan(); err != nil {
		select {
		case <-b.done:
			// The scan loop had already ended by itself.
			b.running = false
			return nil
		default:
		}
		return fmt.Errorf("stop bluetooth scan: %w", err)
	}
	b.running = false
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	logf("ble source stopped")
	return nil
}

func detectionFromScan(addr string, rssi int16, name string, mfg []bluetooth.ManufacturerDataElement) beacon.Detection {
	d := beacon.Detection{
		Address: strings.ToUpper(addr),
		Name:    strings.TrimRight(name, "\x00"),
		RSSI:    int(rssi),
	}
	if len(mfg) > 0 {
		d.VendorData = make(map[uint16][]byte, len(mfg))
		for _, el := range mfg {
			d.VendorData[el.CompanyID] = append([]byte(nil), el.Data...)
		}
	}
	return d
}
