// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const yamlConfig = `
mqtt:
  host: broker.local
  prefix: roaster/thermo/
  qos: 1
spi:
  backend: periph
  bus: SPI0.0
  speed_hz: 4000000
  mux_pins: [GPIO22]
sensors:
  - name: bean
    channel: 0
  - name: exhaust
    channel: 1
poll:
  interval: 500ms
http:
  address: ":9100"
`

func TestLoadYAML(t *testing.T) {
	conf, err := Load(writeConfig(t, "thermo.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if conf.MQTT.Host != "broker.local" || conf.MQTT.Port != 1883 || conf.MQTT.QoS != 1 {
		t.Fatalf("mqtt config %+v", conf.MQTT)
	}
	if conf.MQTT.Prefix != "roaster/thermo" {
		t.Fatalf("prefix %q", conf.MQTT.Prefix)
	}
	if conf.SPI.SpeedHz != 4000000 || len(conf.SPI.MuxPins) != 1 {
		t.Fatalf("spi config %+v", conf.SPI)
	}
	if len(conf.Sensors) != 2 || conf.Sensors[1].Name != "exhaust" || conf.Sensors[1].Channel != 1 {
		t.Fatalf("sensors %+v", conf.Sensors)
	}
	if conf.Poll.interval != 500*time.Millisecond {
		t.Fatalf("interval %s", conf.Poll.interval)
	}
	if conf.Logging.Level != "info" {
		t.Fatalf("logging level %q", conf.Logging.Level)
	}
}

const tomlConfig = `
[spi]
backend = "sim"

[[sensors]]
name = "bean"

[[sensors]]
name = "env"

[logging]
level = "debug"
console = true
`

func TestLoadTOML(t *testing.T) {
	conf, err := Load(writeConfig(t, "thermo.toml", tomlConfig))
	if err != nil {
		t.Fatalf("Unexpected error %v", err)
	}
	if conf.SPI.Backend != backendSim || conf.SPI.SpeedHz != 1000000 {
		t.Fatalf("spi config %+v", conf.SPI)
	}
	if conf.MQTT.Host != "" || conf.MQTT.Prefix != "thermo" {
		t.Fatalf("mqtt config %+v", conf.MQTT)
	}
	if len(conf.Sensors) != 2 || conf.Poll.interval != time.Second {
		t.Fatalf("sensors %+v interval %s", conf.Sensors, conf.Poll.interval)
	}
	if !conf.Logging.Console || conf.Logging.Level != "debug" {
		t.Fatalf("logging %+v", conf.Logging)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
	if _, err := Load(writeConfig(t, "bad.yaml", "sensors: [")); err == nil {
		t.Fatalf("expected a parse error")
	}
}

func validConfig() Config {
	c := Config{
		MQTT:    MqttConfig{Host: "localhost"},
		SPI:     SPIConfig{MuxPins: []string{"A", "B"}},
		Sensors: []SensorConfig{{Name: "bean", Channel: 3}},
	}
	c.applyDefaults()
	return c
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		mod func(c *Config)
		err string // substring, empty for valid
	}{
		"valid":         {func(c *Config) {}, ""},
		"port":          {func(c *Config) { c.MQTT.Port = 70000 }, "port"},
		"qos":           {func(c *Config) { c.MQTT.QoS = 3 }, "qos"},
		"wildcard":      {func(c *Config) { c.MQTT.Prefix = "a/#" }, "wildcards"},
		"backend":       {func(c *Config) { c.SPI.Backend = "bitbang" }, "unknown backend"},
		"embd mux":      {func(c *Config) { c.SPI.Backend = backendEmbd }, "periph"},
		"speed":         {func(c *Config) { c.SPI.SpeedHz = 8000000 }, "speed_hz"},
		"no sensors":    {func(c *Config) { c.Sensors = nil }, "no sensors"},
		"empty name":    {func(c *Config) { c.Sensors[0].Name = "" }, "name cannot be empty"},
		"slash":         {func(c *Config) { c.Sensors[0].Name = "a/b" }, "must not contain"},
		"channel":       {func(c *Config) { c.Sensors[0].Channel = 4 }, "out of range"},
		"interval":      {func(c *Config) { c.Poll.Interval = "10ms" }, "at least"},
		"bad interval":  {func(c *Config) { c.Poll.Interval = "soon" }, "invalid interval"},
		"level":         {func(c *Config) { c.Logging.Level = "chatty" }, "logging"},
		"no mqtt":       {func(c *Config) { c.MQTT.Host = ""; c.MQTT.Port = 0 }, ""},
		"duplicate": {func(c *Config) {
			c.Sensors = append(c.Sensors, SensorConfig{Name: "bean", Channel: 1})
		}, "duplicate"},
		"shared channel": {func(c *Config) {
			c.Sensors = append(c.Sensors, SensorConfig{Name: "env", Channel: 3})
		}, "already used"},
	}
	for n, tc := range tests {
		c := validConfig()
		tc.mod(&c)
		err := c.Validate()
		switch {
		case tc.err == "" && err != nil:
			t.Errorf("%s: unexpected error %v", n, err)
		case tc.err != "" && err == nil:
			t.Errorf("%s: expected error containing %q", n, tc.err)
		case tc.err != "" && !strings.Contains(err.Error(), tc.err):
			t.Errorf("%s: error %q does not contain %q", n, err, tc.err)
		}
	}
}
