// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buspirate implements the programming lines on a Bus Pirate in the
// binary bit-bang mode. The target is wired to MOSI, CLK, MISO and CS (used
// as the reset line). The Bus Pirate power supply is switched on while the
// lines are open.
package buspirate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/berke/avrprogni/avrprog/internal/line"
	"github.com/jacobsa/go-serial/serial"
)

// Binary bit-bang mode commands and pin bits.
const (
	cmdReset   = 0x00 // enter (or stay in) the bit-bang mode
	cmdExit    = 0x0f // back to the user terminal
	cmdPinDir  = 0x40 // | pin bits, 1 means input
	cmdPinsSet = 0x80 // | pin bits and power bits

	pinCS   = 0x01
	pinMISO = 0x02
	pinCLK  = 0x04
	pinMOSI = 0x08
	power   = 0x40

	enterAttempts = 20
	readAttempts  = 10
)

var (
	ErrNoBitbang = errors.New("buspirate: cannot enter the binary bit-bang mode")
	ErrTimeout   = errors.New("buspirate: no response")
)

// Lines drives the programming lines through a Bus Pirate.
type Lines struct {
	rw   io.ReadWriter
	c    io.Closer
	pins byte // last pin command
	buf  [64]byte
}

// Open opens the serial port (eg. /dev/ttyUSB0) and switches the Bus
// Pirate to the binary bit-bang mode.
func Open(port string) (*Lines, error) {
	sp, err := serial.Open(serial.OpenOptions{
		PortName:              port,
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100, // ms
	})
	if err != nil {
		return nil, fmt.Errorf("buspirate: %w", err)
	}
	l, err := New(sp)
	if err != nil {
		sp.Close()
		return nil, err
	}
	l.c = sp
	return l, nil
}

// New enters the bit-bang mode on an already opened connection rw and
// configures MISO as the only input.
func New(rw io.ReadWriter) (*Lines, error) {
	l := &Lines{rw: rw}
	if err := l.enter(); err != nil {
		return nil, err
	}
	if _, err := l.command(cmdPinDir | pinMISO); err != nil {
		return nil, err
	}
	if err := l.SetOutputs(0); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lines) enter() error {
	var got []byte
	for i := 0; i < enterAttempts; i++ {
		if _, err := l.rw.Write([]byte{cmdReset}); err != nil {
			return err
		}
		for k := 0; k < 2; k++ {
			n, err := l.rw.Read(l.buf[:])
			if err != nil && err != io.EOF {
				return err
			}
			got = append(got, l.buf[:n]...)
			if bytes.Contains(got, []byte("BBIO1")) {
				return nil
			}
		}
	}
	return ErrNoBitbang
}

// command sends the one byte command c and returns the one byte reply.
func (l *Lines) command(c byte) (byte, error) {
	l.buf[0] = c
	if _, err := l.rw.Write(l.buf[:1]); err != nil {
		return 0, err
	}
	for i := 0; i < readAttempts; i++ {
		n, err := l.rw.Read(l.buf[:1])
		if n == 1 {
			return l.buf[0], nil
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
	return 0, ErrTimeout
}

func (l *Lines) SetOutputs(b line.Bits) error {
	c := byte(cmdPinsSet | power)
	if b&line.MOSI != 0 {
		c |= pinMOSI
	}
	if b&line.SCK != 0 {
		c |= pinCLK
	}
	if b&line.RST != 0 {
		c |= pinCS
	}
	l.pins = c
	_, err := l.command(c)
	return err
}

// ReadInput repeats the last pin command, the reply holds the current state
// of all pins.
func (l *Lines) ReadInput() (bool, error) {
	r, err := l.command(l.pins)
	return r&pinMISO != 0, err
}

// Close switches the power off, returns the Bus Pirate to the user terminal
// and closes the port.
func (l *Lines) Close() error {
	_, err := l.command(cmdPinsSet)
	if err == nil {
		_, err = l.command(cmdExit)
	}
	if l.c != nil {
		err = errors.Join(err, l.c.Close())
	}
	return err
}
