package scanner

import (
	"context"
	"sync"
)

// Disabled is a source that never produces detections. Start and Stop only
// track state, so the rest of the service runs without radio hardware.
type Disabled struct {
	mu      sync.Mutex
	running bool
}

func NewDisabled() *Disabled { return &Disabled{} }

func (d *Disabled) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		logf("scanning enabled with no radio source configured")
	}
	d.running = true
	return nil
}

func (d *Disabled) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}

// Running reports whether Start was called without a later Stop.
func (d *Disabled) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
