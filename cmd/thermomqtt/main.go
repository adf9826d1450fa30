// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// Thermomqtt reads MAX31855 thermocouple converters periodically and publishes the readings
// as JSON to an MQTT broker. It also exports them as Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelliroast/devices"
	"github.com/intelliroast/devices/max31855"
	"github.com/intelliroast/devices/spimux"
	"github.com/rs/zerolog"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// openSensors opens the SPI bus per conf and returns one device per sensor together with a
// function releasing the bus.
func openSensors(conf SPIConfig, sensors []SensorConfig) ([]sensor, func(), error) {
	var bus spimux.Bus
	var sel []gpio.PinOut
	closer := func() {}

	switch conf.Backend {
	case backendSim:
		devs := make([]sensor, len(sensors))
		for i, s := range sensors {
			c := &simConn{offset: 40 * i, openEvery: 500}
			devs[i] = sensor{s.Name, max31855.NewConn(c)}
		}
		return devs, closer, nil

	case backendEmbd:
		if err := devices.InitSPI(); err != nil {
			return nil, nil, err
		}
		s := devices.NewSPI(byte(conf.Channel), int(conf.SpeedHz))
		bus = s
		closer = func() {
			s.Close()
			devices.CloseSPI()
		}

	default:
		if _, err := host.Init(); err != nil {
			return nil, nil, err
		}
		p, err := spireg.Open(conf.Bus)
		if err != nil {
			return nil, nil, err
		}
		c, err := p.Connect(physic.Frequency(conf.SpeedHz)*physic.Hertz, spi.Mode0, 8)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		for _, name := range conf.MuxPins {
			pin := gpioreg.ByName(name)
			if pin == nil {
				p.Close()
				return nil, nil, fmt.Errorf("cannot open pin %s", name)
			}
			sel = append(sel, pin)
		}
		bus = c
		closer = func() { p.Close() }
	}

	conns := spimux.New(bus, sel...)
	devs := make([]sensor, len(sensors))
	for i, s := range sensors {
		devs[i] = sensor{s.Name, max31855.NewConn(conns[s.Channel])}
	}
	return devs, closer, nil
}

// serveMetrics runs the metrics listener until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("address", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics listener failed")
	}
}

func mainImpl() error {
	confPath := flag.String("config", "thermomqtt.yaml", "configuration file, .yaml or .toml")
	debug := flag.Bool("debug", false, "enable debug output")
	flag.Parse()

	conf, err := Load(*confPath)
	if err != nil {
		return err
	}
	if *debug {
		conf.Logging.Level = "debug"
	}
	log := newLogger(conf.Logging, os.Stderr)

	sensors, closeBus, err := openSensors(conf.SPI, conf.Sensors)
	if err != nil {
		return err
	}
	defer closeBus()
	log.Info().Str("backend", conf.SPI.Backend).Int("sensors", len(sensors)).Msg("SPI ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := &poller{
		sensors: sensors,
		prefix:  conf.MQTT.Prefix,
		metrics: newMetrics(),
		log:     log,
		now:     time.Now,
	}
	if conf.MQTT.Host != "" {
		broker, err := newMQ(conf.MQTT, log)
		if err != nil {
			return err
		}
		defer broker.Close(conf.MQTT.Prefix)
		p.pub = broker
	}
	if conf.HTTP.Address != "" {
		go serveMetrics(ctx, conf.HTTP.Address, p.metrics, log)
	}

	log.Info().Dur("interval", conf.Poll.interval).Msg("Polling")
	p.run(ctx, conf.Poll.interval)
	log.Info().Msg("Shutting down")
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "thermomqtt: %s.\n", err)
		os.Exit(1)
	}
}
