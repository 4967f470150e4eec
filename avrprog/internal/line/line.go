// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package line describes the digital lines between the programmer and the
// target: three outputs (data, clock, reset) and one input (data from the
// target).
package line

import (
	"io"
	"strings"
)

// Bits is a set of output lines. A set bit means the line is driven high
// (active-high convention). See Invert for the active-low wiring.
type Bits uint8

const (
	MOSI Bits = 1 << iota // data to the target
	SCK                   // serial clock
	RST                   // target reset

	Mask = MOSI | SCK | RST
)

func (b Bits) String() string {
	if b&Mask == 0 {
		return "0"
	}
	var s []string
	if b&MOSI != 0 {
		s = append(s, "MOSI")
	}
	if b&SCK != 0 {
		s = append(s, "SCK")
	}
	if b&RST != 0 {
		s = append(s, "RST")
	}
	return strings.Join(s, "|")
}

// Lines is implemented by every transport. SetOutputs drives all three
// output lines at once, ReadInput samples the input line (MISO).
type Lines interface {
	SetOutputs(b Bits) error
	ReadInput() (bool, error)
}

// Driver is a Lines that owns an underlying device.
type Driver interface {
	Lines
	io.Closer
}

// Inverted drives the complement of the requested outputs. It models the
// wiring where a set bit pulls the line low (eg. the parallel port adapter
// with open collector buffers).
type Inverted struct {
	Lines
	Input bool // invert the sampled input too
}

// Invert returns the active-low view of l.
func Invert(l Lines, input bool) *Inverted {
	return &Inverted{Lines: l, Input: input}
}

func (l *Inverted) SetOutputs(b Bits) error {
	return l.Lines.SetOutputs(^b & Mask)
}

func (l *Inverted) ReadInput() (bool, error) {
	v, err := l.Lines.ReadInput()
	return v != l.Input, err
}

// Close closes the wrapped lines if they implement io.Closer.
func (l *Inverted) Close() error {
	if c, ok := l.Lines.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
