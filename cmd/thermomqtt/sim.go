// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"sync"

	"github.com/intelliroast/devices/max31855"
)

// simConn stands in for a chip when no hardware is attached. The thermocouple ramps up by
// a quarter degree per read from 20°C to 230°C and starts over, roughly a roast profile.
// Every openEvery-th read reports an open circuit if openEvery is positive.
type simConn struct {
	mu        sync.Mutex
	n         int
	offset    int // in quarters, to tell sensors apart
	openEvery int
}

const (
	simStart = 20 * 4
	simEnd   = 230 * 4
	simRef   = 25 * 16
)

func (c *simConn) frame() max31855.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	q := simStart + c.offset + (c.n-1)%(simEnd-simStart)
	var faults max31855.Fault
	if c.openEvery > 0 && c.n%c.openEvery == 0 {
		// An open probe reads as full scale.
		q, faults = 0x1fff, max31855.OpenCircuit
	}
	return max31855.NewFrame(q, simRef+c.n%16, faults)
}

func (c *simConn) Tx(w, r []byte) error {
	f := c.frame()
	copy(r, f[:])
	return nil
}
