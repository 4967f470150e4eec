// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package isp implements the serial in-system programming protocol of the
// 8-bit AVR microcontrollers on top of three output lines and one input line.
//
// Every command is a 32-bit frame sent as four bytes, MSB first. The target
// shifts out its answer at the same time, one byte transaction late, so the
// response of a frame is taken from the second and the fourth byte.
//
// A Programmer is not safe for concurrent use. All timing is done with
// blocking sleeps, long operations can be canceled at page boundaries only.
package isp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/berke/avrprogni/avrprog/internal/line"
)

// Programmer drives one target through the lines l.
type Programmer struct {
	l       line.Lines
	cfg     Config
	powered bool
	enabled bool
}

// New returns a programmer that uses l to talk to the target.
func New(l line.Lines, opts ...Option) *Programmer {
	p := &Programmer{l: l, cfg: defaultConfig()}
	for _, opt := range opts {
		opt(&p.cfg)
	}
	return p
}

// Timing returns the current timing.
func (p *Programmer) Timing() Timing {
	return p.cfg.Timing
}

// SetTiming changes the timing of all subsequent operations.
func (p *Programmer) SetTiming(t Timing) {
	p.cfg.Timing = t
}

// Powered reports whether the power-up sequence was run.
func (p *Programmer) Powered() bool { return p.powered }

// Enabled reports whether the target accepted the programming enable
// command since the last power-up.
func (p *Programmer) Enabled() bool { return p.enabled }

func (p *Programmer) sleep(d time.Duration) {
	if d > 0 {
		p.cfg.Sleep(d)
	}
}

func (p *Programmer) progress(op string, done, total int) {
	if p.cfg.Progress != nil {
		p.cfg.Progress(op, done, total)
	}
}

// transact drives the outputs, waits the settle time and samples MISO.
func (p *Programmer) transact(out line.Bits) (bool, error) {
	if err := p.l.SetOutputs(out); err != nil {
		return false, err
	}
	p.sleep(p.cfg.Timing.Settle)
	return p.l.ReadInput()
}

// shiftByte sends x MSB first and returns the bits sampled on the rising
// clock edges.
func (p *Programmer) shiftByte(x byte) (byte, error) {
	var r byte
	for i := 0; i < 8; i++ {
		var out line.Bits
		if x&0x80 != 0 {
			out = line.MOSI
		}
		if _, err := p.transact(out); err != nil {
			return 0, err
		}
		p.sleep(p.cfg.Timing.HalfBit)
		in, err := p.transact(out | line.SCK)
		if err != nil {
			return 0, err
		}
		p.sleep(p.cfg.Timing.HalfBit)
		r <<= 1
		if in {
			r |= 1
		}
		x <<= 1
	}
	_, err := p.transact(0)
	return r, err
}

// Talk sends the four byte command frame u1 u2 u3 u4. The high byte of the
// result is the response to u2, the low byte the response to u4.
func (p *Programmer) Talk(u1, u2, u3, u4 byte) (uint16, error) {
	var resp [4]byte
	for i, u := range [4]byte{u1, u2, u3, u4} {
		r, err := p.shiftByte(u)
		if err != nil {
			return 0, err
		}
		resp[i] = r
	}
	return uint16(resp[1])<<8 | uint16(resp[3]), nil
}

// PowerUp runs the power-up sequence: all lines low, a positive pulse on the
// reset line, then reset low again for the target to enter the programming
// state. It invalidates a previous Enable.
func (p *Programmer) PowerUp() (err error) {
	defer wrapErr("PowerUp", &err)
	p.cfg.Logger.Info("powering up")
	p.powered, p.enabled = false, false
	t := &p.cfg.Timing
	seq := []struct {
		out  line.Bits
		hold time.Duration
	}{
		{0, t.PowerUpLow},
		{line.RST, t.ResetPulse},
		{0, t.PowerUpSettle},
	}
	for _, s := range seq {
		if _, err = p.transact(s.out); err != nil {
			return err
		}
		p.sleep(s.hold)
	}
	p.powered = true
	return nil
}

// Enable sends the programming enable command until the target echoes its
// first byte (0xAC) during the second one or the attempts are exhausted.
func (p *Programmer) Enable() (err error) {
	defer wrapErr("Enable", &err)
	p.enabled = false
	for i := 1; i <= p.cfg.Timing.EnableAttempts; i++ {
		r, err := p.Talk(0xac, 0x53, 0x00, 0x00)
		if err != nil {
			return err
		}
		p.cfg.Logger.Debug(
			"programming enable",
			slog.Int("attempt", i), slog.String("resp", fmt.Sprintf("%04x", r)),
		)
		if r&0xff00 == 0xac00 {
			p.enabled = true
			return nil
		}
	}
	return ErrNoDevice
}

// Connect powers up the target and enables the programming mode.
func (p *Programmer) Connect() error {
	if err := p.PowerUp(); err != nil {
		return err
	}
	return p.Enable()
}

// Release drives the reset line high and all other lines low, letting the
// target run its program.
func (p *Programmer) Release() (err error) {
	defer wrapErr("Release", &err)
	p.powered, p.enabled = false, false
	_, err = p.transact(line.RST)
	return
}

// Reset holds the reset line low for Timing.ResetHold and releases it.
func (p *Programmer) Reset() (err error) {
	defer wrapErr("Reset", &err)
	p.powered, p.enabled = false, false
	if _, err = p.transact(0); err != nil {
		return
	}
	p.sleep(p.cfg.Timing.ResetHold)
	_, err = p.transact(line.RST)
	return
}

func (p *Programmer) requireEnabled() error {
	if !p.enabled {
		return ErrNotEnabled
	}
	return nil
}
