package beacon

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/monitoring"
	"github.com/banshee-data/beaconradar/internal/timeutil"
)

func captureLogs(t *testing.T) func() []string {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	orig := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, format)
	})
	t.Cleanup(func() { monitoring.SetLogger(orig) })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func TestIngestor_RunAppliesDetections(t *testing.T) {
	reg := NewRegistry(timeutil.NewMockClock(t0))
	in := NewIngestor(reg, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		in.Run(ctx)
		close(done)
	}()

	in.Submit(Detection{Address: "AA", Name: "one", RSSI: -40})
	in.Submit(Detection{Address: "BB", RSSI: -80})

	require.Eventually(t, func() bool { return reg.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), in.Applied())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestIngestor_DropsWhenFull(t *testing.T) {
	logs := captureLogs(t)
	reg := NewRegistry(timeutil.NewMockClock(t0))
	in := NewIngestor(reg, 1)

	in.Submit(Detection{Address: "AA"})
	in.Submit(Detection{Address: "BB"})
	assert.Equal(t, uint64(1), in.Dropped())

	assert.Equal(t, 1, in.Drain())
	_, ok := reg.Get("AA")
	assert.True(t, ok)

	found := false
	for _, l := range logs() {
		if strings.Contains(l, "queue full") {
			found = true
		}
	}
	assert.True(t, found, "expected a queue-full log line")
}

func TestIngestor_EmptyAddressLogged(t *testing.T) {
	logs := captureLogs(t)
	reg := NewRegistry(timeutil.NewMockClock(t0))
	in := NewIngestor(reg, 0)

	in.Submit(Detection{Name: "nameless"})
	in.Drain()

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, uint64(0), in.Applied())
	require.Len(t, logs(), 1)
	assert.Contains(t, logs()[0], "[ingest]")
}
