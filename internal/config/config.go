package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/beaconradar/internal/scanner"
	"github.com/banshee-data/beaconradar/internal/serialmux"
)

// Defaults applied by the Get* accessors when a field is unset.
const (
	DefaultActivityThreshold = 3 * time.Second
	DefaultPollInterval      = time.Second
	DefaultSource            = scanner.SourceBLE
	DefaultSerialPort        = "/dev/ttyACM0"
	DefaultListen            = ":8080"
	DefaultExportDir         = "."
	DefaultReplayInterval    = 250 * time.Millisecond
)

// maxFileSize bounds config files read by Load.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the beaconradar configuration file. Every field is optional;
// command-line flags override whatever the file sets.
type Config struct {
	// Registry and poll params
	ActivityThreshold *string `json:"activity_threshold,omitempty"` // duration string like "3s"
	PollInterval      *string `json:"poll_interval,omitempty"`

	// Scanner params
	Source         *string                `json:"source,omitempty"` // ble, serial, mqtt, replay or none
	SerialPort     *string                `json:"serial_port,omitempty"`
	Serial         *serialmux.PortOptions `json:"serial,omitempty"`
	SerialInit     []string               `json:"serial_init,omitempty"` // commands sent to the dongle on start
	MQTTBroker     *string                `json:"mqtt_broker,omitempty"`
	MQTTTopic      *string                `json:"mqtt_topic,omitempty"`
	Fixtures       *string                `json:"fixtures,omitempty"`
	ReplayInterval *string                `json:"replay_interval,omitempty"`

	// Server params
	Listen      *string `json:"listen,omitempty"`
	ExportDir   *string `json:"export_dir,omitempty"`
	ArchivePath *string `json:"archive_path,omitempty"`
	AutoStart   *bool   `json:"autostart,omitempty"`
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file keep their
// defaults through the Get* accessors.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	durations := []struct {
		name string
		v    *string
	}{
		{"activity_threshold", c.ActivityThreshold},
		{"poll_interval", c.PollInterval},
		{"replay_interval", c.ReplayInterval},
	}
	for _, d := range durations {
		if d.v == nil || *d.v == "" {
			continue
		}
		v, err := time.ParseDuration(*d.v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", d.name, *d.v, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, v)
		}
	}

	if c.Source != nil {
		if err := scanner.ValidSource(*c.Source); err != nil {
			return err
		}
	}

	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}

	if c.GetSource() == scanner.SourceMQTT && c.GetMQTTBroker() == "" {
		return fmt.Errorf("mqtt_broker is required when source is %q", scanner.SourceMQTT)
	}
	if c.GetSource() == scanner.SourceReplay && c.GetFixtures() == "" {
		return fmt.Errorf("fixtures is required when source is %q", scanner.SourceReplay)
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetActivityThreshold returns how recently a device must have been seen to
// count as active.
func (c *Config) GetActivityThreshold() time.Duration {
	return durationOr(c.ActivityThreshold, DefaultActivityThreshold)
}

// GetPollInterval returns the history sampling period.
func (c *Config) GetPollInterval() time.Duration {
	return durationOr(c.PollInterval, DefaultPollInterval)
}

func (c *Config) GetReplayInterval() time.Duration {
	return durationOr(c.ReplayInterval, DefaultReplayInterval)
}

func (c *Config) GetSource() string { return stringOr(c.Source, DefaultSource) }

func (c *Config) GetSerialPort() string { return stringOr(c.SerialPort, DefaultSerialPort) }

// GetSerialOptions returns the serial port options with defaults applied.
func (c *Config) GetSerialOptions() serialmux.PortOptions {
	var opts serialmux.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	if n, err := opts.Normalize(); err == nil {
		return n
	}
	return opts
}

func (c *Config) GetMQTTBroker() string { return stringOr(c.MQTTBroker, "") }

func (c *Config) GetMQTTTopic() string { return stringOr(c.MQTTTopic, scanner.DefaultMQTTTopic) }

func (c *Config) GetFixtures() string { return stringOr(c.Fixtures, "") }

func (c *Config) GetListen() string { return stringOr(c.Listen, DefaultListen) }

// GetExportDir returns the directory that export and import paths are
// confined to.
func (c *Config) GetExportDir() string { return stringOr(c.ExportDir, DefaultExportDir) }

// GetArchivePath returns the sqlite archive path. Empty disables archiving.
func (c *Config) GetArchivePath() string { return stringOr(c.ArchivePath, "") }

func (c *Config) GetAutoStart() bool {
	if c.AutoStart == nil {
		return false
	}
	return *c.AutoStart
}
