// Package scanner contains the advertisement sources that feed the beacon
// registry: the host BLE adapter, a serial BLE dongle, MQTT gateways, a
// fixture replayer, and a disabled source.
package scanner

import (
	"context"
	"fmt"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/monitoring"
)

// Handler receives every detection a source produces. It is called from the
// source's own goroutine and must not block.
type Handler func(beacon.Detection)

// Scanner is a source of detections. Start and Stop are idempotent: a second
// call while already in that state returns nil.
type Scanner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Source names accepted by configuration and flags.
const (
	SourceBLE    = "ble"
	SourceSerial = "serial"
	SourceMQTT   = "mqtt"
	SourceReplay = "replay"
	SourceNone   = "none"
)

// ValidSource reports whether name is a known source.
func ValidSource(name string) error {
	switch name {
	case SourceBLE, SourceSerial, SourceMQTT, SourceReplay, SourceNone:
		return nil
	}
	return fmt.Errorf("unknown scanner source %q", name)
}

var logf = monitoring.Prefixed("scanner")
