// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ftdi implements the programming lines on an FT232R USB to serial
// converter in the asynchronous bit-bang mode:
//
//	D0 (TXD)  MOSI
//	D1 (RXD)  SCK
//	D2 (RTS)  RST
//	D3 (CTS)  MISO
package ftdi

import (
	"errors"
	"fmt"

	"github.com/berke/avrprogni/avrprog/internal/line"
	"github.com/berke/avrprogni/avrprog/internal/util"
	usb "github.com/google/gousb"
)

const (
	vendor  = 0x0403
	product = 0x6001

	reqOut = 0x40
	reqIn  = 0xc0

	sioReset      = 0x00
	sioSetBaud    = 0x03
	sioSetBitmode = 0x0b
	sioReadPins   = 0x0c

	bitmodeReset   = 0x00
	bitmodeBitbang = 0x01

	outMask = byte(line.Mask) // D0-D2 outputs
	misoBit = 1 << 3

	epOut = 2
	port  = 1 // interface A
)

var ErrNotFound = errors.New("ftdi: no FT232R device found")

// Lines drives the programming lines through an FT232R.
type Lines struct {
	ctx  *usb.Context
	dev  *usb.Device
	done func()
	out  *usb.OutEndpoint
	buf  [1]byte
}

// Open opens the FT232R at the USB bus:address busAddr or the only one
// connected if busAddr is empty.
func Open(busAddr string) (_ *Lines, err error) {
	ctx, dev, err := util.OpenUSB(vendor, product, busAddr)
	if err != nil {
		if errors.Is(err, util.ErrNoUSBDevice) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ftdi: %w", err)
	}
	l := &Lines{ctx: ctx, dev: dev}
	defer func() {
		if err != nil {
			l.release()
			err = fmt.Errorf("ftdi: %w", err)
		}
	}()
	l.dev.SetAutoDetach(true)
	ifa, done, err := l.dev.DefaultInterface()
	if err != nil {
		return nil, err
	}
	l.done = done
	if l.out, err = ifa.OutEndpoint(epOut); err != nil {
		return nil, err
	}
	if err = l.control(sioReset, 0); err != nil {
		return nil, err
	}
	// 9600 baud gives about 38 kHz of bit-bang updates.
	if err = l.control(sioSetBaud, 0x4138); err != nil {
		return nil, err
	}
	if err = l.control(sioSetBitmode, bitmodeBitbang<<8|uint16(outMask)); err != nil {
		return nil, err
	}
	if err = l.SetOutputs(0); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lines) control(req uint8, val uint16) error {
	_, err := l.dev.Control(reqOut, req, val, port, nil)
	return err
}

func (l *Lines) SetOutputs(b line.Bits) error {
	l.buf[0] = byte(b) & outMask
	_, err := l.out.Write(l.buf[:])
	return err
}

func (l *Lines) ReadInput() (bool, error) {
	var pins [1]byte
	if _, err := l.dev.Control(reqIn, sioReadPins, 0, port, pins[:]); err != nil {
		return false, err
	}
	return pins[0]&misoBit != 0, nil
}

func (l *Lines) release() {
	if l.done != nil {
		l.done()
	}
	l.dev.Close()
	l.ctx.Close()
}

// Close drives all outputs low, leaves the bit-bang mode and releases the
// device.
func (l *Lines) Close() error {
	err := l.SetOutputs(0)
	err = errors.Join(err, l.control(sioSetBitmode, bitmodeReset))
	l.release()
	return err
}
