package beacon

import (
	"context"
	"sync/atomic"

	"github.com/banshee-data/beaconradar/internal/monitoring"
)

// DefaultIngestBuffer is the detection queue depth used when none is given.
const DefaultIngestBuffer = 256

var ingestLogf = monitoring.Prefixed("ingest")

// Ingestor funnels detections from scanner callbacks into a Registry
// through a single writer goroutine.
type Ingestor struct {
	reg     *Registry
	ch      chan Detection
	dropped atomic.Uint64
	applied atomic.Uint64
}

// NewIngestor creates an ingestor feeding reg. A buffer of zero or less uses
// DefaultIngestBuffer.
func NewIngestor(reg *Registry, buffer int) *Ingestor {
	if buffer <= 0 {
		buffer = DefaultIngestBuffer
	}
	return &Ingestor{reg: reg, ch: make(chan Detection, buffer)}
}

// Submit queues a detection without blocking. When the queue is full the
// detection is dropped.
func (in *Ingestor) Submit(d Detection) {
	select {
	case in.ch <- d:
	default:
		n := in.dropped.Add(1)
		ingestLogf("queue full, dropped detection from %s (%d dropped so far)", d.Address, n)
	}
}

// Run applies queued detections until ctx is done.
func (in *Ingestor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-in.ch:
			in.apply(d)
		}
	}
}

func (in *Ingestor) apply(d Detection) {
	if !in.reg.Upsert(d) {
		ingestLogf("ignoring detection without address (name=%q rssi=%d)", d.Name, d.RSSI)
		return
	}
	in.applied.Add(1)
}

// Drain applies every detection already queued and returns how many were
// processed. It does not wait for new ones.
func (in *Ingestor) Drain() int {
	n := 0
	for {
		select {
		case d := <-in.ch:
			in.apply(d)
			n++
		default:
			return n
		}
	}
}

// Dropped returns how many detections were discarded because the queue was full.
func (in *Ingestor) Dropped() uint64 { return in.dropped.Load() }

// Applied returns how many detections reached the registry.
func (in *Ingestor) Applied() uint64 { return in.applied.Load() }
