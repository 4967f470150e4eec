// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim provides a simulated AVR target that implements line.Lines.
//
// The target decodes the serial programming protocol at the level of line
// edges: it samples MOSI on the rising edge of SCK and changes MISO on the
// falling one. While it receives the second byte of a frame it sends back the
// first one, while receiving the third byte it sends back the second one and
// while receiving the fourth byte it sends the result of a read command.
// Write commands take effect after the fourth byte. Driving the reset line
// high ends the programming mode.
package sim

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/berke/avrprogni/avrprog/internal/line"
)

// Target is a simulated AVR. The exported fields may be modified between
// commands.
type Target struct {
	Flash     []byte
	Signature [3]byte
	FuseLo    byte
	FuseHi    byte
	Lock      byte
	PageWords int // 0 for the byte-wise programmed parts

	// BusyPolls is the number of program memory reads answered with 0xFF
	// after every write.
	BusyPolls int

	// Stuck maps byte addresses to the values they always read as.
	Stuck map[int]byte

	// Absent makes the target never drive MISO.
	Absent bool

	// IgnoreEnable is the number of programming enable commands the target
	// ignores before it starts to answer them.
	IgnoreEnable int

	out     line.Bits
	miso    bool
	nbit    int
	in      byte
	send    byte
	frame   [4]byte
	nbyte   int
	enabled bool
	busy    int
	page    []byte
	counts  map[byte]int
	frames  [][4]byte
	closed  bool
}

// New returns an erased target with the given signature and flash geometry.
func New(sig [3]byte, flashSize, pageWords int) *Target {
	t := &Target{
		Flash:     make([]byte, flashSize),
		Signature: sig,
		FuseLo:    0xe1,
		FuseHi:    0xd9,
		Lock:      0x3f,
		PageWords: pageWords,
		counts:    make(map[byte]int),
	}
	fill(t.Flash)
	if pageWords > 0 {
		t.page = make([]byte, 2*pageWords)
		fill(t.page)
	}
	return t
}

func fill(p []byte) {
	for i := range p {
		p[i] = 0xff
	}
}

type model struct {
	sig       [3]byte
	flashSize int
	pageWords int
}

var models = map[string]model{
	"at90s1200": {[3]byte{0x1e, 0x90, 0x01}, 1024, 0},
	"atmega48":  {[3]byte{0x1e, 0x92, 0x05}, 4096, 32},
	"atmega8":   {[3]byte{0x1e, 0x93, 0x07}, 8192, 32},
	"atmega16":  {[3]byte{0x1e, 0x94, 0x03}, 16384, 64},
	"atmega32":  {[3]byte{0x1e, 0x95, 0x02}, 32768, 64},
	"atmega64":  {[3]byte{0x1e, 0x96, 0x02}, 65536, 128},
}

// Models returns the sorted names accepted by NewModel.
func Models() []string {
	return slices.Sorted(maps.Keys(models))
}

// NewModel returns a simulated target of the named model (eg. "atmega8").
func NewModel(name string) (*Target, error) {
	m, ok := models[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf(
			"sim: unknown model %q (known: %s)",
			name, strings.Join(Models(), ", "),
		)
	}
	return New(m.sig, m.flashSize, m.pageWords), nil
}

// Count returns the number of complete frames with the first byte op.
func (t *Target) Count(op byte) int {
	return t.counts[op]
}

// Frames returns all complete frames received so far.
func (t *Target) Frames() [][4]byte {
	return t.frames
}

// Enabled reports whether the target is in the programming mode.
func (t *Target) Enabled() bool {
	return t.enabled
}

func (t *Target) SetOutputs(b line.Bits) error {
	if t.closed {
		return fmt.Errorf("sim: closed")
	}
	b &= line.Mask
	prev := t.out
	t.out = b
	if b&line.RST != 0 {
		t.enabled = false
		t.nbit, t.nbyte, t.in, t.send = 0, 0, 0, 0
		t.miso = false
		return nil
	}
	switch {
	case prev&line.SCK == 0 && b&line.SCK != 0:
		t.in <<= 1
		if b&line.MOSI != 0 {
			t.in |= 1
		}
		t.nbit++
	case prev&line.SCK != 0 && b&line.SCK == 0:
		if t.nbit == 8 {
			t.receive(t.in)
			t.nbit, t.in = 0, 0
		}
		t.miso = t.send<<t.nbit&0x80 != 0
	}
	return nil
}

func (t *Target) ReadInput() (bool, error) {
	if t.closed {
		return false, fmt.Errorf("sim: closed")
	}
	return t.miso && !t.Absent, nil
}

func (t *Target) Close() error {
	t.closed = true
	return nil
}

// receive handles a complete byte and selects the byte to send next.
func (t *Target) receive(b byte) {
	t.frame[t.nbyte] = b
	t.nbyte++
	switch t.nbyte {
	case 1:
		t.send = 0
		if t.enabled || b == 0xac && t.IgnoreEnable == 0 {
			t.send = b
		}
	case 2:
		if !t.enabled && t.frame[0] == 0xac && b == 0x53 {
			if t.IgnoreEnable > 0 {
				t.IgnoreEnable--
			} else {
				t.enabled = true
			}
		}
		t.send = 0
		if t.enabled {
			t.send = b
		}
	case 3:
		t.send = 0
		if t.enabled {
			t.send = t.read()
		}
	case 4:
		t.counts[t.frame[0]]++
		t.frames = append(t.frames, t.frame)
		if t.enabled {
			t.write()
		}
		t.nbyte, t.send = 0, 0
	}
}

func (t *Target) wordAddr() int {
	return int(t.frame[1])<<8 | int(t.frame[2])
}

func (t *Target) flashByte(a int) byte {
	if v, ok := t.Stuck[a]; ok {
		return v
	}
	if a < 0 || a >= len(t.Flash) {
		return 0xff
	}
	return t.Flash[a]
}

func (t *Target) read() byte {
	f := t.frame
	switch f[0] {
	case 0x20, 0x28:
		if t.busy > 0 {
			t.busy--
			return 0xff
		}
		a := 2 * t.wordAddr()
		if f[0] == 0x28 {
			a++
		}
		return t.flashByte(a)
	case 0x30:
		if i := int(f[2] & 3); i < len(t.Signature) {
			return t.Signature[i]
		}
		return 0xff
	case 0x50:
		return t.FuseLo
	case 0x58:
		return t.FuseHi
	case 0x98:
		return t.Lock
	}
	return 0
}

func (t *Target) write() {
	f := t.frame
	switch f[0] {
	case 0x40, 0x48:
		k := 0
		if f[0] == 0x48 {
			k = 1
		}
		if t.PageWords > 0 {
			t.page[2*(t.wordAddr()%t.PageWords)+k] = f[3]
			return
		}
		if a := 2*t.wordAddr() + k; a < len(t.Flash) {
			t.Flash[a] = f[3]
			t.busy = t.BusyPolls
		}
	case 0x4c:
		if t.PageWords == 0 {
			return
		}
		base := 2 * (t.wordAddr() / t.PageWords * t.PageWords)
		if base+len(t.page) <= len(t.Flash) {
			copy(t.Flash[base:], t.page)
		}
		fill(t.page)
		t.busy = t.BusyPolls
	case 0xac:
		switch f[1] {
		case 0x80:
			fill(t.Flash)
			t.Lock = 0x3f
		case 0xa0:
			t.FuseLo = f[3]
		case 0xa8:
			t.FuseHi = f[3]
		case 0xe0:
			t.Lock = f[3] & 0x3f
		case 0xff:
			t.Lock = 0x3f
		}
	}
}
