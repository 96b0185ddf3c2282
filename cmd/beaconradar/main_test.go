package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/beacon"
	"github.com/banshee-data/beaconradar/internal/config"
	"github.com/banshee-data/beaconradar/internal/scanner"
	"github.com/banshee-data/beaconradar/internal/testutil"
)

// newFlagSet mirrors the command-line flags on a private set so tests can
// parse arguments without touching flag.CommandLine.
func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("beaconradar", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("listen", config.DefaultListen, "")
	fs.String("source", config.DefaultSource, "")
	fs.String("port", config.DefaultSerialPort, "")
	fs.String("broker", "", "")
	fs.String("topic", scanner.DefaultMQTTTopic, "")
	fs.String("fixtures", "", "")
	fs.String("archive", "", "")
	fs.String("export-dir", config.DefaultExportDir, "")
	fs.Bool("autostart", false, "")
	return fs
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configFile)
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, scanner.SourceBLE, *source)
	assert.Equal(t, "/dev/ttyACM0", *port)
	assert.Equal(t, scanner.DefaultMQTTTopic, *topic)
	assert.False(t, *autostart)
	assert.False(t, *showVersion)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSource, cfg.GetSource())

	path := filepath.Join(t.TempDir(), "radar.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"source":"none","listen":":9090"}`), 0o644))
	cfg, err = loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, scanner.SourceNone, cfg.GetSource())
	assert.Equal(t, ":9090", cfg.GetListen())

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	fileSource := scanner.SourceSerial
	fileListen := ":9090"
	cfg := &config.Config{Source: &fileSource, Listen: &fileListen}

	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{
		"-source", "mqtt",
		"-broker", "tcp://gateway:1883",
		"-topic", "site/+/adv",
		"-archive", "runs.db",
		"-export-dir", "/var/lib/beaconradar",
		"-autostart",
	}))
	require.NoError(t, applyFlags(fs, cfg))

	assert.Equal(t, scanner.SourceMQTT, cfg.GetSource())
	assert.Equal(t, "tcp://gateway:1883", cfg.GetMQTTBroker())
	assert.Equal(t, "site/+/adv", cfg.GetMQTTTopic())
	assert.Equal(t, "runs.db", cfg.GetArchivePath())
	assert.Equal(t, "/var/lib/beaconradar", cfg.GetExportDir())
	assert.True(t, cfg.GetAutoStart())
	assert.Equal(t, ":9090", cfg.GetListen(), "unset flags keep the file value")
}

func TestApplyFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown source", []string{"-source", "zigbee"}},
		{"mqtt without broker", []string{"-source", "mqtt"}},
		{"replay without fixtures", []string{"-source", "replay"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFlagSet()
			require.NoError(t, fs.Parse(tt.args))
			assert.Error(t, applyFlags(fs, &config.Config{}))
		})
	}
}

func TestBuildScanner_None(t *testing.T) {
	src := scanner.SourceNone
	sc, mux, closeFn, err := buildScanner(&config.Config{Source: &src}, func(beacon.Detection) {})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &scanner.Disabled{}, sc)
	assert.Nil(t, mux)
}

func TestBuildScanner_BLE(t *testing.T) {
	sc, mux, closeFn, err := buildScanner(&config.Config{}, func(beacon.Detection) {})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &scanner.BLE{}, sc)
	assert.Nil(t, mux)
}

func TestBuildScanner_Replay(t *testing.T) {
	testutil.MuteLogs(t)

	path := filepath.Join(t.TempDir(), "fixtures.txt")
	line := `{"type":"adv","addr":"AA:BB:CC:DD:EE:01","rssi":-61,"name":"kitchen"}`
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o644))

	src := scanner.SourceReplay
	interval := "10ms"
	cfg := &config.Config{Source: &src, Fixtures: &path, ReplayInterval: &interval}

	got := make(chan beacon.Detection, 16)
	sc, mux, closeFn, err := buildScanner(cfg, func(d beacon.Detection) {
		select {
		case got <- d:
		default:
		}
	})
	require.NoError(t, err)
	require.NotNil(t, mux)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	require.NoError(t, sc.Start(ctx))
	defer sc.Stop(context.Background())

	select {
	case d := <-got:
		assert.Equal(t, "AA:BB:CC:DD:EE:01", d.Address)
		assert.Equal(t, -61, d.RSSI)
	case <-time.After(2 * time.Second):
		t.Fatal("no detection replayed")
	}
}

func TestBuildScanner_Errors(t *testing.T) {
	testutil.MuteLogs(t)

	serialSrc := scanner.SourceSerial
	missingPort := filepath.Join(t.TempDir(), "ttyNOPE")
	_, _, _, err := buildScanner(&config.Config{Source: &serialSrc, SerialPort: &missingPort}, nil)
	assert.Error(t, err)

	replaySrc := scanner.SourceReplay
	missingFixtures := filepath.Join(t.TempDir(), "missing.txt")
	_, _, _, err = buildScanner(&config.Config{Source: &replaySrc, Fixtures: &missingFixtures}, nil)
	assert.Error(t, err)

	bogus := "zigbee"
	_, _, _, err = buildScanner(&config.Config{Source: &bogus}, nil)
	assert.Error(t, err)
}
