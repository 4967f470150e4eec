// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpi implements the programming lines on the Raspberry Pi header
// using direct /dev/gpiomem access. Pins are given as BCM numbers.
package rpi

import (
	"fmt"
	"strconv"

	"github.com/berke/avrprogni/avrprog/internal/line"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

// Lines drives the programming lines using go-rpio.
type Lines struct {
	out  [3]rpio.Pin // MOSI, SCK, RST
	miso rpio.Pin
}

func bcm(name string) (rpio.Pin, error) {
	n, err := strconv.ParseUint(name, 10, 8)
	if err != nil || n > 27 {
		return 0, fmt.Errorf("rpi: bad BCM pin number %q", name)
	}
	return rpio.Pin(n), nil
}

// Open maps the GPIO memory and configures the pins. All outputs start low.
func Open(pins line.Pins) (*Lines, error) {
	l := new(Lines)
	for i, name := range pins.Outputs() {
		p, err := bcm(name)
		if err != nil {
			return nil, err
		}
		l.out[i] = p
	}
	miso, err := bcm(pins.MISO)
	if err != nil {
		return nil, err
	}
	l.miso = miso
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("rpi: %w", err)
	}
	for _, p := range l.out {
		p.Output()
		p.Low()
	}
	l.miso.Input()
	l.miso.PullOff()
	return l, nil
}

func (l *Lines) SetOutputs(b line.Bits) error {
	for i, p := range l.out {
		if b&(1<<i) != 0 {
			p.Write(rpio.High)
		} else {
			p.Write(rpio.Low)
		}
	}
	return nil
}

func (l *Lines) ReadInput() (bool, error) {
	return l.miso.Read() == rpio.High, nil
}

// Close drives all outputs low, turns them into inputs and unmaps the GPIO
// memory.
func (l *Lines) Close() error {
	for _, p := range l.out {
		p.Low()
		p.Input()
	}
	return rpio.Close()
}
