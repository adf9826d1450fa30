// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/intelliroast/devices"
	"github.com/intelliroast/devices/max31855"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// sample is one good reading in raw chip units.
type sample struct {
	quarters, sixteenths int
	frame                max31855.Frame
}

// readMedian collects n good readings and returns the median of each temperature. It gives
// up after n errors. Every now and then the max31855 returns a bad value, depending a lot on
// noise, so a single reading is not trusted. It sleeps between readings to give the chip
// time to perform a fresh conversion (100ms max).
func readMedian(d *max31855.Dev, n int, pause time.Duration) (sample, error) {
	var tc, ref []int
	var last max31855.Frame
	nErr := 0
	for len(tc) < n {
		f, err := d.ReadFrame()
		if err == nil && !f.Consistent() {
			err = fmt.Errorf("max31855: garbled frame %08x", f.Uint32())
		}
		if err == nil && f.HasFault() {
			err = &max31855.FaultError{Faults: f.Faults(), Frame: f}
		}
		if err != nil {
			nErr++
			if nErr == n {
				return sample{}, err
			}
		} else {
			tc = append(tc, f.ThermocoupleQuarters())
			ref = append(ref, f.ReferenceSixteenths())
			last = f
		}
		if len(tc) < n {
			time.Sleep(pause)
		}
	}
	sort.Ints(tc)
	sort.Ints(ref)
	return sample{tc[n/2], ref[n/2], last}, nil
}

func mainImpl() error {
	busName := flag.String("bus", "", "periph SPI port name, empty for the first one")
	useEmbd := flag.Bool("embd", false, "use embd instead of periph for SPI")
	channel := flag.Int("cs", 0, "chip select channel when using embd")
	hz := flag.Int64("hz", 1000000, "SPI clock in Hz")
	samples := flag.Int("n", 3, "number of readings to take the median of")
	fahr := flag.Bool("f", false, "print whole degrees Fahrenheit")
	raw := flag.Bool("raw", false, "print the raw frame as well")
	flag.Parse()
	if flag.NArg() != 0 {
		return errors.New("unexpected arguments")
	}
	if *samples < 1 {
		return errors.New("-n must be at least 1")
	}

	var d *max31855.Dev
	if *useEmbd {
		if err := devices.InitSPI(); err != nil {
			return err
		}
		defer devices.CloseSPI()
		s := devices.NewSPI(byte(*channel), int(*hz))
		defer s.Close()
		d = max31855.NewConn(s)
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		p, err := spireg.Open(*busName)
		if err != nil {
			return err
		}
		defer p.Close()
		if d, err = max31855.New(p, &max31855.Opts{Freq: physic.Frequency(*hz) * physic.Hertz}); err != nil {
			return err
		}
	}

	s, err := readMedian(d, *samples, 100*time.Millisecond)
	if err != nil {
		return err
	}
	if *raw {
		fmt.Printf("Frame: %08x (%s)\n", s.frame.Uint32(), s.frame)
	}
	if *fahr {
		tc := max31855.ToFahrenheit(s.quarters >> 2)
		ref := max31855.ToFahrenheit(s.sixteenths >> 4)
		fmt.Printf("Thermocouple: %d°F internal: %d°F\n", tc, ref)
	} else {
		fmt.Printf("Thermocouple: %.2f°C internal: %.4f°C\n",
			float64(s.quarters)/4, float64(s.sixteenths)/16)
	}
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "max31855: %s.\n", err)
		os.Exit(1)
	}
}
