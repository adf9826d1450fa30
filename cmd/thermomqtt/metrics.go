// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus metrics of the daemon, on a private registry.
type metrics struct {
	registry *prometheus.Registry

	Thermocouple  *prometheus.GaugeVec
	Reference     *prometheus.GaugeVec
	Reads         *prometheus.CounterVec
	ReadErrors    *prometheus.CounterVec
	Faults        *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &metrics{
		registry: reg,
		Thermocouple: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "max31855_thermocouple_celsius",
			Help: "Last thermocouple temperature read, 0.25°C resolution",
		}, []string{"sensor"}),
		Reference: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "max31855_reference_celsius",
			Help: "Last cold-junction temperature read, 0.0625°C resolution",
		}, []string{"sensor"}),
		Reads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "max31855_reads_total",
			Help: "Total number of frames read",
		}, []string{"sensor"}),
		ReadErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "max31855_read_errors_total",
			Help: "Total number of failed transfers and garbled frames",
		}, []string{"sensor"}),
		Faults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "max31855_faults_total",
			Help: "Total number of frames reporting a thermocouple fault, by fault",
		}, []string{"sensor", "fault"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "max31855_publish_errors_total",
			Help: "Total number of readings that could not be published",
		}, []string{"sensor"}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
