// Copyright 2016 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"errors"
	"testing"

	"github.com/intelliroast/devices/max31855"
)

// seqConn returns the frames in sequence, a nil entry stands for a transfer error.
type seqConn struct {
	frames []*max31855.Frame
}

func (c *seqConn) Tx(w, r []byte) error {
	if len(c.frames) == 0 {
		return errors.New("out of frames")
	}
	f := c.frames[0]
	c.frames = c.frames[1:]
	if f == nil {
		return errors.New("bus error")
	}
	copy(r, f[:])
	return nil
}

func frame(q, s int, faults max31855.Fault) *max31855.Frame {
	f := max31855.NewFrame(q, s, faults)
	return &f
}

var medianTests = map[string]struct {
	frames  []*max31855.Frame
	n       int
	q, s    int
	wantErr bool
}{
	"single":  {[]*max31855.Frame{frame(400, 320, 0)}, 1, 400, 320, false},
	"median":  {[]*max31855.Frame{frame(400, 330, 0), frame(9000&0x1fff, 320, 0), frame(401, 310, 0)}, 3, 401, 320, false},
	"retry":   {[]*max31855.Frame{nil, frame(400, 320, 0), frame(-4, 300, max31855.ShortGND), frame(402, 321, 0), frame(404, 322, 0)}, 3, 402, 321, false},
	"garbled": {[]*max31855.Frame{{0xff, 0xff, 0xff, 0xff}, frame(100, 320, 0)}, 1, 0, 0, true},
	"give up": {[]*max31855.Frame{nil, frame(400, 320, 0), nil, nil}, 3, 0, 0, true},
}

func TestReadMedian(t *testing.T) {
	for n, tc := range medianTests {
		d := max31855.NewConn(&seqConn{tc.frames})
		s, err := readMedian(d, tc.n, 0)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected an error", n)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", n, err)
		}
		if s.quarters != tc.q || s.sixteenths != tc.s {
			t.Fatalf("%s: got %d/%d expected %d/%d", n, s.quarters, s.sixteenths, tc.q, tc.s)
		}
	}
}
