// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package max31855

import (
	"fmt"
	"strings"

	"periph.io/x/periph/conn/physic"
)

// Frame is the 32-bit word shifted out by the MAX31855 on every read, most significant
// byte first. Its layout is:
//
//	bits 31..18  thermocouple temperature, signed, 0.25°C per LSB
//	bit  17      reserved, always 0
//	bit  16      fault, set if any of bits 2..0 is set
//	bits 15..4   internal (cold-junction) temperature, signed, 0.0625°C per LSB
//	bit  3       reserved, always 0
//	bit  2       thermocouple shorted to VCC
//	bit  1       thermocouple shorted to GND
//	bit  0       thermocouple open circuit
//
// All methods take a Frame by value and never modify it.
type Frame [4]byte

const (
	faultBit     = 1 << 16
	reservedBits = 1<<17 | 1<<3
)

// FrameFromUint32 returns the frame for a 32-bit word as read off the wire.
func FrameFromUint32(v uint32) Frame {
	return Frame{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// Uint32 returns the frame as a single 32-bit word.
func (f Frame) Uint32() uint32 {
	return uint32(f[0])<<24 | uint32(f[1])<<16 | uint32(f[2])<<8 | uint32(f[3])
}

// NewFrame produces the frame the chip would emit for a thermocouple reading in 0.25°C
// units, an internal reading in 0.0625°C units and a set of faults. Readings are truncated
// to the width of their field and the fault bit is set iff faults is non-empty.
func NewFrame(quarters, sixteenths int, faults Fault) Frame {
	faults &= allFaults
	v := uint32(quarters&0x3fff)<<18 | uint32(sixteenths&0xfff)<<4 | uint32(faults)
	if faults != 0 {
		v |= faultBit
	}
	return FrameFromUint32(v)
}

// ThermocoupleQuarters returns the raw thermocouple reading in units of 0.25°C,
// in the range -8192..8191.
func (f Frame) ThermocoupleQuarters() int {
	// The 14-bit field is left-aligned in a 16-bit word so int16 carries its sign bit.
	return int(int16(uint16(f[0])<<8|uint16(f[1]&0xfc)) >> 2)
}

// ThermocoupleCelsius returns the thermocouple temperature in whole degrees Celsius. The
// fraction is dropped by an arithmetic shift, i.e. the result is rounded toward negative
// infinity: -0.25°C yields -1.
func (f Frame) ThermocoupleCelsius() int {
	return f.ThermocoupleQuarters() >> 2
}

// ReferenceSixteenths returns the raw internal (cold-junction) reading in units of
// 0.0625°C, in the range -2048..2047.
func (f Frame) ReferenceSixteenths() int {
	return int(int16(uint16(f[2])<<8|uint16(f[3]&0xf0)) >> 4)
}

// ReferenceCelsius returns the internal temperature in whole degrees Celsius, discarding
// the fractional nibble (rounding toward negative infinity).
func (f Frame) ReferenceCelsius() int {
	return f.ReferenceSixteenths() >> 4
}

// Thermocouple returns the thermocouple temperature at full resolution.
func (f Frame) Thermocouple() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(f.ThermocoupleQuarters())*250*physic.MilliKelvin
}

// Reference returns the internal temperature at full resolution.
func (f Frame) Reference() physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(f.ReferenceSixteenths())*62500*physic.MicroKelvin
}

// Faults returns the individual fault flags. Several may be set at once.
func (f Frame) Faults() Fault {
	return Fault(f[3]) & allFaults
}

// HasFault reports the chip's aggregate fault bit. It is read from its own bit and not
// derived from Faults, so the two can be compared.
func (f Frame) HasFault() bool {
	return f[1]&1 != 0
}

// Connected returns false if the chip reports an open thermocouple circuit.
func (f Frame) Connected() bool {
	return !f.Faults().Has(OpenCircuit)
}

// Reserved returns true if one of the reserved bits is set, which a working chip never does.
func (f Frame) Reserved() bool {
	return f.Uint32()&reservedBits != 0
}

// Consistent returns true if the reserved bits are clear and the aggregate fault bit agrees
// with the individual fault flags. A frame failing this check was most likely garbled on
// the bus, e.g. because MISO is floating.
func (f Frame) Consistent() bool {
	return !f.Reserved() && f.HasFault() == (f.Faults() != 0)
}

func (f Frame) String() string {
	return fmt.Sprintf("tc=%.2f°C ref=%.4f°C faults=%s",
		float64(f.ThermocoupleQuarters())/4, float64(f.ReferenceSixteenths())/16, f.Faults().String())
}

// Fault is a set of thermocouple faults detected by the chip. The values match the bit
// positions in the last byte of a Frame.
type Fault uint8

const (
	OpenCircuit Fault = 1 << iota // thermocouple not connected
	ShortGND                      // thermocouple shorted to ground
	ShortVCC                      // thermocouple shorted to VCC

	allFaults = OpenCircuit | ShortGND | ShortVCC
)

var faultNames = []struct {
	f    Fault
	name string
	msg  string
}{
	{OpenCircuit, "open", "thermocouple open circuit"},
	{ShortGND, "short-gnd", "thermocouple shorted to ground"},
	{ShortVCC, "short-vcc", "thermocouple shorted to VCC"},
}

// Has returns true if all faults in g are set in f.
func (f Fault) Has(g Fault) bool {
	return f&g == g
}

// Names returns the short names of the faults in the set, in bit order.
func (f Fault) Names() []string {
	names := []string{}
	for _, n := range faultNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}
	return names
}

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), ",")
}

// FaultError is returned by Dev.Temperature when the chip flags a fault.
type FaultError struct {
	Faults Fault
	Frame  Frame
}

func (e *FaultError) Error() string {
	msgs := []string{}
	for _, n := range faultNames {
		if e.Faults.Has(n.f) {
			msgs = append(msgs, n.msg)
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "fault bit set without fault flags")
	}
	return "max31855: " + strings.Join(msgs, ", ")
}
