// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"testing"

	"github.com/berke/avrprogni/avrprog/internal/line"
)

// send clocks the frame into tgt and returns the bytes sampled on MISO.
func send(t *testing.T, tgt *Target, frame ...byte) (resp [4]byte) {
	t.Helper()
	for i, x := range frame {
		for k := 0; k < 8; k++ {
			var out line.Bits
			if x&0x80 != 0 {
				out = line.MOSI
			}
			tgt.SetOutputs(out)
			tgt.SetOutputs(out | line.SCK)
			in, err := tgt.ReadInput()
			if err != nil {
				t.Fatal(err)
			}
			resp[i] <<= 1
			if in {
				resp[i] |= 1
			}
			x <<= 1
		}
		tgt.SetOutputs(0)
	}
	return
}

func enable(t *testing.T, tgt *Target) {
	t.Helper()
	tgt.SetOutputs(line.RST)
	tgt.SetOutputs(0)
	if r := send(t, tgt, 0xac, 0x53, 0x00, 0x00); r[1] != 0xac || r[2] != 0x53 {
		t.Fatalf("programming enable response % X", r)
	}
	if !tgt.Enabled() {
		t.Fatal("target not enabled")
	}
}

func TestEchoAndRead(t *testing.T) {
	tgt, err := NewModel("ATmega8")
	if err != nil {
		t.Fatal(err)
	}
	enable(t, tgt)
	r := send(t, tgt, 0x30, 0x00, 0x02, 0x00)
	if r[1] != 0x30 || r[2] != 0x00 || r[3] != 0x07 {
		t.Errorf("signature byte 2 response % X", r)
	}
	tgt.Flash[0x21] = 0x5a
	if r := send(t, tgt, 0x28, 0x00, 0x10, 0x00); r[3] != 0x5a {
		t.Errorf("read high byte of word 0x10: % X", r)
	}
}

func TestPageWrite(t *testing.T) {
	tgt := New([3]byte{0x1e, 0x93, 0x07}, 8192, 32)
	enable(t, tgt)
	send(t, tgt, 0x40, 0x00, 0x03, 0x11)
	send(t, tgt, 0x48, 0x00, 0x03, 0x22)
	if tgt.Flash[0x46] != 0xff {
		t.Fatal("page buffer load changed the flash")
	}
	send(t, tgt, 0x4c, 0x00, 0x20, 0x00) // page 1
	if tgt.Flash[0x46] != 0x11 || tgt.Flash[0x47] != 0x22 {
		t.Errorf("flash % X", tgt.Flash[0x40:0x48])
	}
	if tgt.Count(0x4c) != 1 || len(tgt.Frames()) != 4 {
		t.Errorf("counts: write page %d, frames %d", tgt.Count(0x4c), len(tgt.Frames()))
	}
}

func TestBusyAndStuck(t *testing.T) {
	tgt := New([3]byte{0x1e, 0x90, 0x01}, 1024, 0)
	tgt.BusyPolls = 2
	tgt.Stuck = map[int]byte{1: 0x00}
	enable(t, tgt)
	send(t, tgt, 0x40, 0x00, 0x00, 0x42)
	for i, want := range []byte{0xff, 0xff, 0x42} {
		if r := send(t, tgt, 0x20, 0x00, 0x00, 0x00); r[3] != want {
			t.Errorf("poll %d = %#x, want %#x", i, r[3], want)
		}
	}
	tgt.BusyPolls = 0
	send(t, tgt, 0x48, 0x00, 0x00, 0x42)
	if r := send(t, tgt, 0x28, 0x00, 0x00, 0x00); r[3] != 0x00 {
		t.Errorf("stuck byte reads %#x", r[3])
	}
}

func TestNotEnabled(t *testing.T) {
	tgt := New([3]byte{0x1e, 0x93, 0x07}, 8192, 32)
	if r := send(t, tgt, 0x30, 0x00, 0x00, 0x00); r != [4]byte{} {
		t.Errorf("response % X before programming enable", r)
	}
	send(t, tgt, 0xac, 0x80, 0x00, 0x00)
	tgt.Flash[0] = 0
	send(t, tgt, 0xac, 0x80, 0x00, 0x00)
	if tgt.Flash[0] != 0 {
		t.Error("erase executed before programming enable")
	}
}

func TestResetLeavesProgrammingMode(t *testing.T) {
	tgt, _ := NewModel("atmega16")
	enable(t, tgt)
	tgt.SetOutputs(line.RST)
	if tgt.Enabled() {
		t.Error("still enabled with the reset line high")
	}
}

func TestUnknownModel(t *testing.T) {
	if _, err := NewModel("pic16f84"); err == nil {
		t.Error("NewModel(pic16f84) succeeded")
	}
	if err := new(Target).Close(); err != nil {
		t.Error(err)
	}
}
