package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func receive(c <-chan time.Time) (time.Time, bool) {
	select {
	case v := <-c:
		return v, true
	default:
		return time.Time{}, false
	}
}

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))

	ticker := clock.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(now)
	assert.Equal(t, now, clock.Now())

	clock.Advance(4 * time.Second)
	assert.Equal(t, now.Add(4*time.Second), clock.Now())
}

func TestMockClock_Ticker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ticker := clock.NewTicker(time.Second)

	_, ok := receive(ticker.C())
	assert.False(t, ok, "ticker fired too early")

	clock.Advance(time.Second)
	got, ok := receive(ticker.C())
	assert.True(t, ok, "ticker did not fire after first interval")
	assert.Equal(t, start.Add(time.Second), got)

	clock.Advance(500 * time.Millisecond)
	_, ok = receive(ticker.C())
	assert.False(t, ok, "ticker fired before its next interval")

	clock.Advance(500 * time.Millisecond)
	_, ok = receive(ticker.C())
	assert.True(t, ok)
}

func TestMockClock_UnreadTickDropped(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	ticker := clock.NewTicker(time.Second)

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	clock.Advance(10 * time.Second)

	_, ok := receive(ticker.C())
	assert.True(t, ok)
	_, ok = receive(ticker.C())
	assert.False(t, ok, "only one tick is buffered")
}

func TestMockClock_Stop(t *testing.T) {
	clock := NewMockClock(time.Now())
	a := clock.NewTicker(time.Second)
	clock.NewTicker(time.Minute)
	assert.Equal(t, 2, clock.Tickers())

	a.Stop()
	assert.Equal(t, 1, clock.Tickers())

	clock.Advance(5 * time.Second)
	_, ok := receive(a.C())
	assert.False(t, ok, "stopped ticker should not tick")
}
