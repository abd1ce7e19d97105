// Package config loads the controller configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SerialConfig identifies the rotor's serial link.
type SerialConfig struct {
	Port string `yaml:"port"` // e.g. /dev/ttyUSB0 or COM4
	Baud int    `yaml:"baud"` // Pelco-D heads usually run at 2400
}

// ListenConfig holds the network listen addresses.
type ListenConfig struct {
	HTTP     string `yaml:"http"`
	EasyComm string `yaml:"easycomm"`
}

// LimitsConfig bounds rotor travel in degrees.
type LimitsConfig struct {
	AzMin float64 `yaml:"az_min"`
	AzMax float64 `yaml:"az_max"`
	ElMin float64 `yaml:"el_min"`
	ElMax float64 `yaml:"el_max"`
}

// SpeedsConfig holds the measured axis speeds used for dead reckoning.
type SpeedsConfig struct {
	AzimuthDPS   float64 `yaml:"azimuth_dps"`
	ElevationDPS float64 `yaml:"elevation_dps"`
}

// DriveConfig tunes how drive commands are issued.
type DriveConfig struct {
	// Speed is the Pelco-D speed byte (0-63) used for timed drives.
	// The dead-reckoning speeds above must be measured at this setting.
	Speed int `yaml:"speed"`
	// TickMs is the move-loop tick interval in milliseconds.
	TickMs int `yaml:"tick_ms"`
	// Simultaneous selects whether both axes are driven in one frame.
	// Heads that cannot do that get the longer axis first, then the other.
	Simultaneous *bool `yaml:"simultaneous"`
	// Address is the Pelco-D drive head address.
	Address int `yaml:"address"`
}

// InitialConfig is the assumed position at startup.
type InitialConfig struct {
	Azimuth   float64 `yaml:"azimuth"`
	Elevation float64 `yaml:"elevation"`
}

// Config aggregates all controller configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Listen  ListenConfig  `yaml:"listen"`
	Limits  LimitsConfig  `yaml:"limits"`
	Speeds  SpeedsConfig  `yaml:"speeds"`
	Drive   DriveConfig   `yaml:"drive"`
	Initial InitialConfig `yaml:"initial"`
}

// Default returns the configuration of the reference deployment: a 2400
// baud head that can see the sky from 45° to 135° of elevation, parked
// at zenith.
func Default() *Config {
	simultaneous := true
	return &Config{
		Serial: SerialConfig{Baud: 2400},
		Listen: ListenConfig{HTTP: ":5000", EasyComm: ":4533"},
		Limits: LimitsConfig{AzMin: 0, AzMax: 360, ElMin: 45, ElMax: 135},
		Speeds: SpeedsConfig{AzimuthDPS: 6, ElevationDPS: 4},
		Drive: DriveConfig{
			Speed:        0x20,
			TickMs:       100,
			Simultaneous: &simultaneous,
			Address:      0x01,
		},
		Initial: InitialConfig{Azimuth: 0, Elevation: 90},
	}
}

// Load reads a YAML file, fills in defaults, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limits.AzMin > c.Limits.AzMax {
		return fmt.Errorf("limits: az_min %.1f > az_max %.1f", c.Limits.AzMin, c.Limits.AzMax)
	}
	if c.Limits.ElMin > c.Limits.ElMax {
		return fmt.Errorf("limits: el_min %.1f > el_max %.1f", c.Limits.ElMin, c.Limits.ElMax)
	}
	if c.Speeds.AzimuthDPS <= 0 || c.Speeds.ElevationDPS <= 0 {
		return fmt.Errorf("speeds must be positive, got %.2f/%.2f dps",
			c.Speeds.AzimuthDPS, c.Speeds.ElevationDPS)
	}
	if c.Drive.Speed < 0 || c.Drive.Speed > 0x3F {
		return fmt.Errorf("drive.speed must be 0-63, got %d", c.Drive.Speed)
	}
	if c.Drive.TickMs <= 0 {
		return fmt.Errorf("drive.tick_ms must be positive, got %d", c.Drive.TickMs)
	}
	if c.Drive.Address < 1 || c.Drive.Address > 0xFF {
		return fmt.Errorf("drive.address must be 1-255, got %d", c.Drive.Address)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	return nil
}

// Tick returns the move-loop tick interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Drive.TickMs) * time.Millisecond
}

// SimultaneousDrive reports whether both axes may be driven in one frame.
func (c *Config) SimultaneousDrive() bool {
	return c.Drive.Simultaneous == nil || *c.Drive.Simultaneous
}
