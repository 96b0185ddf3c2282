package scanner

import (
	"time"

	"github.com/banshee-data/beaconradar/internal/serialmux"
)

// DefaultReplayInterval is the delay between replayed fixture lines.
const DefaultReplayInterval = 250 * time.Millisecond

// NewReplay loads a fixture file and returns a serial source backed by an
// emulated dongle replaying it, together with that dongle's mux. The caller
// runs the mux's Monitor loop exactly as for real hardware.
func NewReplay(path string, interval time.Duration, h Handler) (*Serial, serialmux.SerialMuxInterface, error) {
	lines, err := serialmux.LoadFixtures(path)
	if err != nil {
		return nil, nil, err
	}
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	mux := serialmux.NewFixtureSerialMux(lines, interval)
	logf("replaying %d fixture lines from %s every %s", len(lines), path, interval)
	return NewSerial(mux, h), mux, nil
}
