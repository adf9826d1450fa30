// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The max31855 package interfaces with the Maxim Integrated MAX31855 thermocouple
// to digital converter chip.
//
// The MAX31855 chip contains an analog-to-digital converter that is designed to read the
// low voltages produced by thermocouples and convert them to degrees centigrade which can
// be read out using a read-only SPI interface. The MAX31855 comes in a number of variants
// for the different types of thermocouples (max31855K for K-type, max31855J for J-type, etc).
//
// Every read returns a 32-bit Frame holding the thermocouple temperature, the chip's own
// (cold-junction) temperature and the fault flags. Decoding a Frame is a pure function of
// its four bytes; Dev only adds the SPI transfer. Code that performs the transfer itself,
// e.g. on a shared bus, can construct a Frame from the bytes it read and decode that.
//
// The max31855 measures the thermocouple temperature to a resolution of 0.25°C and its internal
// temperature to 0.0625°C. The absolute accuracy, however, is +/-2°C for K-type thermocouples in
// the -200°C..700°C range as well as for the internal temperature sensor.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/MAX31855.pdf
package max31855

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
)

// Conn is what the driver needs from an SPI connection. A periph spi.Conn satisfies it, as
// do the embd shim in the devices package and a spimux.Conn.
type Conn interface {
	Tx(w, r []byte) error
}

// Opts holds the SPI settings used by New.
type Opts struct {
	Freq physic.Frequency // SPI clock, at most 5MHz
}

// DefaultOpts is a conservative clock that works with long wires.
var DefaultOpts = Opts{Freq: physic.MegaHertz}

const maxFreq = 5 * physic.MegaHertz

// Dev represents a MAX31855 device.
type Dev struct {
	c    Conn
	name string
}

// New connects to a MAX31855 on the SPI port. The chip only supports mode 0 and is read
// as four 8-bit words.
func New(p spi.Port, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Freq <= 0 || opts.Freq > maxFreq {
		return nil, fmt.Errorf("max31855: invalid SPI clock %s, must be at most %s", opts.Freq, maxFreq)
	}
	c, err := p.Connect(opts.Freq, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("max31855: connect error: %w", err)
	}
	return &Dev{c: c, name: "max31855{" + p.String() + "}"}, nil
}

// NewConn returns a device using a connection that has already been configured.
func NewConn(c Conn) *Dev {
	return &Dev{c: c, name: "max31855"}
}

func (d *Dev) String() string { return d.name }

// Halt is a no-op, the chip converts continuously and has no low power mode.
func (d *Dev) Halt() error { return nil }

// ReadFrame performs a 32-bit read of the device and returns the raw frame.
func (d *Dev) ReadFrame() (Frame, error) {
	var wBuf, rBuf Frame
	if err := d.c.Tx(wBuf[:], rBuf[:]); err != nil {
		return Frame{}, fmt.Errorf("max31855: txn error: %w", err)
	}
	return rBuf, nil
}

// Temperature returns the thermocouple temperature and the internal MAX31855 temperature (in that
// order). If the chip reports a fault the error is a *FaultError.
func (d *Dev) Temperature() (physic.Temperature, physic.Temperature, error) {
	f, err := d.ReadFrame()
	if err != nil {
		return 0, 0, err
	}
	if f.HasFault() || f.Faults() != 0 {
		return 0, 0, &FaultError{Faults: f.Faults(), Frame: f}
	}
	return f.Thermocouple(), f.Reference(), nil
}

// Sense reads the thermocouple temperature into env. Pressure and humidity are left alone.
func (d *Dev) Sense(env *physic.Env) error {
	t, _, err := d.Temperature()
	if err != nil {
		return err
	}
	env.Temperature = t
	return nil
}

// IsFault returns the fault flags if err was caused by a thermocouple fault.
func IsFault(err error) (Fault, bool) {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Faults, true
	}
	return 0, false
}
