// Copyright 2017 by Thorsten von Eicken, see LICENSE file

package spimux

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio"
)

// Bus is the shared SPI connection. A periph spi.Conn and the embd shim both qualify.
type Bus interface {
	Tx(w, r []byte) error
}

// Conn represents a connection to one device on an SPI bus whose single chip select is
// routed through a demultiplexer.
//
// The select pins drive the address inputs of the demux, the first pin being the least
// significant bit. With one pin and a 74LVC1G19 two devices can share the bus: SPI CS goes
// to E, the select pin to A, and the two device CS inputs to Y0 and Y1. A 74HC138 with
// three select pins serves eight MAX31855 on a single chip select. Pull-downs on the
// address inputs keep the outputs defined while the pins are not driven.
//
// All connections created together share a mutex so that setting the address and
// performing the transfer is atomic. They also share the bus configuration: it is not
// possible to clock the devices at different speeds.
type Conn struct {
	mu   *sync.Mutex
	bus  Bus
	sel  []gpio.PinOut
	addr int
}

// New returns 2^len(sel) connections for the provided bus; connection i selects demux
// output i. Without select pins it returns a single connection that only adds locking.
func New(bus Bus, sel ...gpio.PinOut) []*Conn {
	mu := &sync.Mutex{}
	conns := make([]*Conn, 1<<uint(len(sel)))
	for i := range conns {
		conns[i] = &Conn{mu: mu, bus: bus, sel: sel, addr: i}
	}
	return conns
}

// Tx drives the select pins to this connection's address and calls the underlying Tx.
func (c *Conn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.sel {
		l := gpio.Level(c.addr&(1<<uint(i)) != 0)
		if err := p.Out(l); err != nil {
			return fmt.Errorf("spimux: cannot select %d: %w", c.addr, err)
		}
	}
	return c.bus.Tx(w, r)
}

// Addr returns the demux output used by this connection.
func (c *Conn) Addr() int { return c.addr }

func (c *Conn) String() string {
	return fmt.Sprintf("spimux#%d", c.addr)
}

// Close is a no-op, the owner of the bus closes it.
func (c *Conn) Close() error { return nil }
