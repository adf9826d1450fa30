// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/intelliroast/devices/max31855"
	"github.com/rs/zerolog"
)

// Reading is the JSON payload published for every frame read.
type Reading struct {
	Sensor        string    `json:"sensor"`
	Thermocouple  float64   `json:"thermocouple"`   // °C, 0.25°C resolution
	Reference     float64   `json:"reference"`      // °C, 0.0625°C resolution
	ThermocoupleC int       `json:"thermocouple_c"` // whole °C, rounded down
	ThermocoupleF int       `json:"thermocouple_f"` // whole °F, rounded
	ReferenceC    int       `json:"reference_c"`
	Fault         bool      `json:"fault"`
	Faults        []string  `json:"faults,omitempty"`
	Raw           string    `json:"raw"`
	Time          time.Time `json:"time"`
}

func newReading(sensor string, f max31855.Frame, at time.Time) *Reading {
	return &Reading{
		Sensor:        sensor,
		Thermocouple:  float64(f.ThermocoupleQuarters()) / 4,
		Reference:     float64(f.ReferenceSixteenths()) / 16,
		ThermocoupleC: f.ThermocoupleCelsius(),
		ThermocoupleF: max31855.ToFahrenheit(f.ThermocoupleCelsius()),
		ReferenceC:    f.ReferenceCelsius(),
		Fault:         f.HasFault(),
		Faults:        f.Faults().Names(),
		Raw:           fmt.Sprintf("%08x", f.Uint32()),
		Time:          at,
	}
}

type sensor struct {
	name string
	dev  *max31855.Dev
}

// poller reads all sensors at a fixed interval. It is driven by a single goroutine.
type poller struct {
	sensors []sensor
	pub     publisher // nil when MQTT is disabled
	prefix  string
	metrics *metrics
	log     zerolog.Logger
	now     func() time.Time
}

// run polls until ctx is cancelled, starting right away.
func (p *poller) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.pollAll()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *poller) pollAll() {
	for _, s := range p.sensors {
		r, err := p.read(s)
		if err != nil {
			p.log.Error().Err(err).Str("sensor", s.name).Msg("Read failed")
			continue
		}
		if p.pub == nil {
			continue
		}
		topic := p.prefix + "/" + s.name
		if err := p.pub.Publish(topic, r); err != nil {
			p.metrics.PublishErrors.WithLabelValues(s.name).Inc()
			p.log.Error().Err(err).Str("topic", topic).Msg("Publish failed")
		}
	}
}

// read reads one frame and updates the metrics. Faults are not errors: the reading is
// returned so the fault gets published, but the thermocouple gauge is left alone.
func (p *poller) read(s sensor) (*Reading, error) {
	p.metrics.Reads.WithLabelValues(s.name).Inc()
	f, err := s.dev.ReadFrame()
	if err == nil && !f.Consistent() {
		err = fmt.Errorf("max31855: garbled frame %08x", f.Uint32())
	}
	if err != nil {
		p.metrics.ReadErrors.WithLabelValues(s.name).Inc()
		return nil, err
	}

	r := newReading(s.name, f, p.now())
	p.metrics.Reference.WithLabelValues(s.name).Set(r.Reference)
	if f.HasFault() {
		for _, n := range r.Faults {
			p.metrics.Faults.WithLabelValues(s.name, n).Inc()
		}
		p.log.Warn().Str("sensor", s.name).Strs("faults", r.Faults).Msg("Thermocouple fault")
		return r, nil
	}
	p.metrics.Thermocouple.WithLabelValues(s.name).Set(r.Thermocouple)
	p.log.Debug().Str("sensor", s.name).Float64("tc", r.Thermocouple).
		Float64("ref", r.Reference).Msg("Reading")
	return r, nil
}
