package scanner

import (
	"context"
	"fmt"
	"sync"

	"github.com/banshee-data/beaconradar/internal/serialmux"
)

// Serial reads advertisements from a BLE dongle through a serial mux. The
// mux's Monitor loop must be running for lines to arrive.
type Serial struct {
	mux     serialmux.SerialMuxInterface
	handler Handler

	mu      sync.Mutex
	subID   string
	done    chan struct{}
	running bool
}

// NewSerial creates a serial source that hands detections to h.
func NewSerial(mux serialmux.SerialMuxInterface, h Handler) *Serial {
	return &Serial{mux: mux, handler: h}
}

// Start subscribes to the mux and turns on dongle scanning.
func (s *Serial) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	id, lines := s.mux.Subscribe()
	if err := s.mux.SendCommand(serialmux.CommandScanOn); err != nil {
		s.mux.Unsubscribe(id)
		return fmt.Errorf("enable dongle scanning: %w", err)
	}
	s.subID = id
	s.done = make(chan struct{})
	s.running = true
	go s.consume(lines, s.done)
	logf("serial source started")
	return nil
}

func (s *Serial) consume(lines <-chan string, done chan struct{}) {
	defer close(done)
	for line := range lines {
		if serialmux.ClassifyLine(line) != serialmux.LineTypeAdvertisement {
			continue
		}
		d, err := DecodeLine(line)
		if err != nil {
			logf("serial: %v", err)
			continue
		}
		s.handler(d)
	}
}

// Stop turns off dongle scanning and waits for the consumer to finish.
func (s *Serial) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	err := s.mux.SendCommand(serialmux.CommandScanOff)
	s.mux.Unsubscribe(s.subID)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("disable dongle scanning: %w", err)
	}
	logf("serial source stopped")
	return nil
}
