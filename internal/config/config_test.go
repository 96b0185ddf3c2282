package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/beaconradar/internal/scanner"
	"github.com/banshee-data/beaconradar/internal/serialmux"
)

func ptrString(v string) *string { return &v }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.GetActivityThreshold())
	assert.Equal(t, time.Second, cfg.GetPollInterval())
	assert.Equal(t, 250*time.Millisecond, cfg.GetReplayInterval())
	assert.Equal(t, scanner.SourceBLE, cfg.GetSource())
	assert.Equal(t, DefaultSerialPort, cfg.GetSerialPort())
	assert.Equal(t, scanner.DefaultMQTTTopic, cfg.GetMQTTTopic())
	assert.Equal(t, ":8080", cfg.GetListen())
	assert.Equal(t, ".", cfg.GetExportDir())
	assert.Empty(t, cfg.GetArchivePath())
	assert.Empty(t, cfg.GetMQTTBroker())
	assert.False(t, cfg.GetAutoStart())
	assert.Equal(t, serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, cfg.GetSerialOptions())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "beaconradar.json", `{
  "activity_threshold": "5s",
  "poll_interval": "500ms",
  "source": "serial",
  "serial_port": "/dev/ttyUSB1",
  "serial": {"baud_rate": 9600, "parity": "even"},
  "serial_init": ["AT+SCAN=1"],
  "listen": "127.0.0.1:9090",
  "export_dir": "/var/lib/beaconradar",
  "archive_path": "/var/lib/beaconradar/archive.db",
  "autostart": true
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.GetActivityThreshold())
	assert.Equal(t, 500*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, scanner.SourceSerial, cfg.GetSource())
	assert.Equal(t, "/dev/ttyUSB1", cfg.GetSerialPort())
	assert.Equal(t, serialmux.PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "E"}, cfg.GetSerialOptions())
	assert.Equal(t, []string{"AT+SCAN=1"}, cfg.SerialInit)
	assert.Equal(t, "127.0.0.1:9090", cfg.GetListen())
	assert.Equal(t, "/var/lib/beaconradar", cfg.GetExportDir())
	assert.Equal(t, "/var/lib/beaconradar/archive.db", cfg.GetArchivePath())
	assert.True(t, cfg.GetAutoStart())
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"listen": ":9999"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.GetListen())
	assert.Equal(t, DefaultActivityThreshold, cfg.GetActivityThreshold())
	assert.Equal(t, DefaultSource, cfg.GetSource())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "config.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"listen":`, "failed to parse config JSON"},
		{"bad duration", "dur.json", `{"activity_threshold": "soon"}`, "invalid activity_threshold"},
		{"negative duration", "neg.json", `{"poll_interval": "-1s"}`, "poll_interval must be positive"},
		{"unknown source", "src.json", `{"source": "zigbee"}`, "unknown scanner source"},
		{"bad parity", "parity.json", `{"serial": {"parity": "mark"}}`, "unsupported parity"},
		{"mqtt without broker", "mqtt.json", `{"source": "mqtt"}`, "mqtt_broker is required"},
		{"replay without fixtures", "replay.json", `{"source": "replay"}`, "fixtures is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stat config file")
}

func TestLoad_TooLarge(t *testing.T) {
	body := `{"listen": "` + strings.Repeat("x", maxFileSize) + `"}`
	path := writeConfig(t, "huge.json", body)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestGetters_InvalidValuesFallBack(t *testing.T) {
	cfg := &Config{
		ActivityThreshold: ptrString("not-a-duration"),
		PollInterval:      ptrString(""),
		Source:            ptrString(""),
	}
	assert.Equal(t, DefaultActivityThreshold, cfg.GetActivityThreshold())
	assert.Equal(t, DefaultPollInterval, cfg.GetPollInterval())
	assert.Equal(t, DefaultSource, cfg.GetSource())
}

func TestValidate_MQTTWithBroker(t *testing.T) {
	cfg := &Config{Source: ptrString("mqtt"), MQTTBroker: ptrString("tcp://localhost:1883"), MQTTTopic: ptrString("site/+/adv")}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "site/+/adv", cfg.GetMQTTTopic())
}
