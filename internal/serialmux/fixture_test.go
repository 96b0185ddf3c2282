package serialmux

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFixtures(t *testing.T) {
	in := "// recorded 2024-05-01\n\nAA,-60,one\n  {\"addr\":\"BB\",\"rssi\":-70}  \n"
	lines, err := ReadFixtures(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"AA,-60,one", `{"addr":"BB","rssi":-70}`}, lines)
}

func TestLoadFixtures_Missing(t *testing.T) {
	_, err := LoadFixtures("/definitely/not/here.txt")
	assert.Error(t, err)
}

func TestFixtureSerialMux_ReplaysOnlyWhileScanning(t *testing.T) {
	mux := NewFixtureSerialMux([]string{"AA,-60", "BB,-70"}, 5*time.Millisecond)
	_, ch := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	select {
	case line := <-ch:
		t.Fatalf("received %q before scanning was enabled", line)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, mux.SendCommand(CommandScanOn))
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-timeout:
			t.Fatalf("only received %v", got)
		}
	}
	assert.Equal(t, []string{"AA,-60", "BB,-70", "AA,-60"}, got)
	assert.Equal(t, []string{CommandScanOn}, mux.port.Commands())

	require.NoError(t, mux.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop after Close")
	}
}
