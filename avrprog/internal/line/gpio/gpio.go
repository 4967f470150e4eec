// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpio implements the programming lines on any four GPIO pins known
// to the periph.io registry (sysfs GPIO, Raspberry Pi, FT232H/FT232R
// adapters, ...).
package gpio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/berke/avrprogni/avrprog/internal/line"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var hostInitialized atomic.Bool

// Lines drives the programming lines using periph.io pins.
type Lines struct {
	out  [3]gpio.PinIO // MOSI, SCK, RST
	miso gpio.PinIO
}

// Open looks up the named pins and configures them. All outputs start low.
func Open(pins line.Pins) (*Lines, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("gpio: host initialization failed: %w", err)
		}
	}
	l := new(Lines)
	for i, name := range pins.Outputs() {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio: unknown pin %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("gpio: %s: %w", name, err)
		}
		l.out[i] = p
	}
	l.miso = gpioreg.ByName(pins.MISO)
	if l.miso == nil {
		return nil, fmt.Errorf("gpio: unknown pin %q", pins.MISO)
	}
	if err := l.miso.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("gpio: %s: %w", pins.MISO, err)
	}
	return l, nil
}

func (l *Lines) SetOutputs(b line.Bits) error {
	for i, p := range l.out {
		if err := p.Out(gpio.Level(b&(1<<i) != 0)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lines) ReadInput() (bool, error) {
	return l.miso.Read() == gpio.High, nil
}

// Close drives all outputs low and halts the pins.
func (l *Lines) Close() error {
	err := l.SetOutputs(0)
	for _, p := range l.out {
		err = errors.Join(err, p.Halt())
	}
	return errors.Join(err, l.miso.Halt())
}
