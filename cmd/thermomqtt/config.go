// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, read from a YAML or TOML file.
type Config struct {
	MQTT    MqttConfig     `yaml:"mqtt" toml:"mqtt"`
	SPI     SPIConfig      `yaml:"spi" toml:"spi"`
	Sensors []SensorConfig `yaml:"sensors" toml:"sensors"`
	Poll    PollConfig     `yaml:"poll" toml:"poll"`
	HTTP    HTTPConfig     `yaml:"http" toml:"http"`
	Logging LoggingConfig  `yaml:"logging" toml:"logging"`
}

// MqttConfig describes the broker. An empty host disables publishing.
type MqttConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	ClientID string `yaml:"client_id" toml:"client_id"`
	Prefix   string `yaml:"prefix" toml:"prefix"` // topic prefix, readings go to <prefix>/<sensor>
	QoS      int    `yaml:"qos" toml:"qos"`
	Retain   bool   `yaml:"retain" toml:"retain"`
}

// SPIConfig selects how the chips are reached.
type SPIConfig struct {
	Backend string   `yaml:"backend" toml:"backend"` // periph, embd or sim
	Bus     string   `yaml:"bus" toml:"bus"`         // periph port name, empty for the first
	Channel int      `yaml:"channel" toml:"channel"` // embd chip select
	SpeedHz int64    `yaml:"speed_hz" toml:"speed_hz"`
	MuxPins []string `yaml:"mux_pins" toml:"mux_pins"` // demux address pins, LSB first
}

// SensorConfig names one thermocouple. Channel is its demux output.
type SensorConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Channel int    `yaml:"channel" toml:"channel"`
}

type PollConfig struct {
	Interval string        `yaml:"interval" toml:"interval"`
	interval time.Duration // parsed by Validate
}

// HTTPConfig is the metrics listener, an empty address disables it.
type HTTPConfig struct {
	Address string `yaml:"address" toml:"address"`
}

type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	Console bool   `yaml:"console" toml:"console"`
}

const (
	backendPeriph = "periph"
	backendEmbd   = "embd"
	backendSim    = "sim"

	maxSpeedHz = 5000000
	// The chip needs up to 100ms for a conversion, polling faster returns stale data.
	minInterval = 100 * time.Millisecond
)

// Load reads and parses the configuration file, fills in defaults and validates it. Files
// ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var conf Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &conf)
	} else {
		err = yaml.Unmarshal(data, &conf)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	conf.applyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &conf, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = "thermo"
	}
	c.MQTT.Prefix = strings.TrimSuffix(c.MQTT.Prefix, "/")
	if c.SPI.Backend == "" {
		c.SPI.Backend = backendPeriph
	}
	if c.SPI.SpeedHz == 0 {
		c.SPI.SpeedHz = 1000000
	}
	if c.Poll.Interval == "" {
		c.Poll.Interval = "1s"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration and parses the poll interval.
func (c *Config) Validate() error {
	if c.MQTT.Host != "" && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		return fmt.Errorf("mqtt: port must be between 1 and 65535, got %d", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if strings.ContainsAny(c.MQTT.Prefix, "+#") {
		return fmt.Errorf("mqtt: prefix %q must not contain wildcards", c.MQTT.Prefix)
	}

	switch c.SPI.Backend {
	case backendPeriph, backendSim:
	case backendEmbd:
		if len(c.SPI.MuxPins) > 0 {
			return fmt.Errorf("spi: mux_pins need the periph backend")
		}
	default:
		return fmt.Errorf("spi: unknown backend %q", c.SPI.Backend)
	}
	if c.SPI.SpeedHz < 1 || c.SPI.SpeedHz > maxSpeedHz {
		return fmt.Errorf("spi: speed_hz must be between 1 and %d, got %d", maxSpeedHz, c.SPI.SpeedHz)
	}
	if len(c.SPI.MuxPins) > 4 {
		return fmt.Errorf("spi: at most 4 mux_pins supported, got %d", len(c.SPI.MuxPins))
	}

	if len(c.Sensors) == 0 {
		return fmt.Errorf("no sensors configured")
	}
	nChan := 1 << uint(len(c.SPI.MuxPins))
	names := make(map[string]bool)
	channels := make(map[int]string)
	for i, s := range c.Sensors {
		if s.Name == "" {
			return fmt.Errorf("sensor %d: name cannot be empty", i)
		}
		if strings.ContainsAny(s.Name, "/+#") {
			return fmt.Errorf("sensor %q: name must not contain '/', '+' or '#'", s.Name)
		}
		if names[s.Name] {
			return fmt.Errorf("sensor %q: duplicate name", s.Name)
		}
		names[s.Name] = true
		if s.Channel < 0 || s.Channel >= nChan {
			return fmt.Errorf("sensor %q: channel %d out of range 0..%d", s.Name, s.Channel, nChan-1)
		}
		if other, ok := channels[s.Channel]; ok && c.SPI.Backend != backendSim {
			return fmt.Errorf("sensor %q: channel %d already used by %q", s.Name, s.Channel, other)
		}
		channels[s.Channel] = s.Name
	}

	d, err := time.ParseDuration(c.Poll.Interval)
	if err != nil {
		return fmt.Errorf("poll: invalid interval: %w", err)
	}
	if d < minInterval {
		return fmt.Errorf("poll: interval must be at least %s, got %s", minInterval, d)
	}
	c.Poll.interval = d

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
