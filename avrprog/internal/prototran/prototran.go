// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prototran sends 32-bit commands to a target that is not in the
// programming mode, eg. to a boot loader that watches the programming lines
// while the reset line is high.
//
// A frame consists of 4-bit line code symbols: two START symbols, one DATA
// symbol for every bit of the payload and of the check byte (LSB first) and
// the STOP symbol. Every symbol is sent LSB first, one line bit per clock
// cycle with the reset line held high. The target acknowledges a frame by
// toggling MISO.
package prototran

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/berke/avrprogni/avrprog/internal/line"
)

// Line code symbols.
const (
	Start = 0xf
	Data0 = 0x2
	Data1 = 0x6
	Stop  = 0xe
)

// DefaultRetries is the number of times a frame is sent before giving up.
const DefaultRetries = 500

var ErrNotAcknowledged = errors.New("prototran: command not acknowledged")

// Checksum returns the check byte of x: the negated sum of its bytes.
func Checksum(x uint32) byte {
	return -(byte(x) + byte(x>>8) + byte(x>>16) + byte(x>>24))
}

// Frame returns the symbols of the frame that carries x.
func Frame(x uint32) []byte {
	sym := make([]byte, 0, 2+32+8+1)
	sym = append(sym, Start, Start)
	data := func(v uint32, n int) {
		for i := 0; i < n; i++ {
			if v&1 != 0 {
				sym = append(sym, Data1)
			} else {
				sym = append(sym, Data0)
			}
			v >>= 1
		}
	}
	data(x, 32)
	data(uint32(Checksum(x)), 8)
	return append(sym, Stop)
}

// Link sends frames over the programming lines.
type Link struct {
	Lines   line.Lines
	Tau     time.Duration // duration of every clock phase
	Retries int
	Sleep   func(time.Duration)
	Logger  *slog.Logger
}

// NewLink returns a link with the default number of retries that sleeps
// with time.Sleep and discards its log.
func NewLink(l line.Lines, tau time.Duration) *Link {
	return &Link{
		Lines:   l,
		Tau:     tau,
		Retries: DefaultRetries,
		Sleep:   time.Sleep,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (k *Link) symbol(s byte) error {
	for i := 0; i < 4; i++ {
		out := line.RST
		if s&1 != 0 {
			out |= line.MOSI
		}
		if err := k.Lines.SetOutputs(out); err != nil {
			return err
		}
		k.Sleep(k.Tau)
		if err := k.Lines.SetOutputs(out | line.SCK); err != nil {
			return err
		}
		k.Sleep(k.Tau)
		s >>= 1
	}
	return nil
}

// Send sends x until the target acknowledges it or k.Retries attempts are
// made. The lines are left with only the reset line high.
func (k *Link) Send(ctx context.Context, x uint32) (err error) {
	ack0, err := k.Lines.ReadInput()
	if err != nil {
		return err
	}
	defer func() {
		if e := k.Lines.SetOutputs(line.RST); err == nil {
			err = e
		}
	}()
	frame := Frame(x)
	for attempt := 1; attempt <= k.Retries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		k.Logger.Debug(
			"prototran: sending",
			slog.String("x", fmt.Sprintf("%#06x", x)),
			slog.Int("attempt", attempt),
		)
		for _, s := range frame {
			if err = k.symbol(s); err != nil {
				return err
			}
		}
		ack, err := k.Lines.ReadInput()
		if err != nil {
			return err
		}
		if ack != ack0 {
			k.Logger.Info("prototran: command acknowledged", slog.Int("attempts", attempt))
			return nil
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrNotAcknowledged, k.Retries)
}
