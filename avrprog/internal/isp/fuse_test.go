// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"errors"
	"testing"
	"time"

	"github.com/berke/avrprogni/avrprog/internal/line/sim"
)

func TestFuses(t *testing.T) {
	var sleeps []time.Duration
	tgt, p := connect(t, "atmega8", WithSleep(func(d time.Duration) {
		if d >= time.Millisecond {
			sleeps = append(sleeps, d)
		}
	}))
	sleeps = nil
	f, err := p.ReadFuses()
	if err != nil {
		t.Fatal(err)
	}
	if f != (Fuses{Lo: 0xe1, Hi: 0xd9}) {
		t.Errorf("ReadFuses() = %v", f)
	}
	if err := p.WriteFuses(Fuses{Lo: 0xff, Hi: 0xc9}); err != nil {
		t.Fatal(err)
	}
	if tgt.FuseLo != 0xff || tgt.FuseHi != 0xc9 {
		t.Errorf("target fuses lo=%#x hi=%#x", tgt.FuseLo, tgt.FuseHi)
	}
	if len(sleeps) != 2 || sleeps[0] != 5*time.Millisecond {
		t.Errorf("fuse write delays %v", sleeps)
	}
	if f, _ := p.ReadFuses(); f.Hi != 0xc9 || f.Lo != 0xff {
		t.Errorf("read back %v", f)
	}
}

func TestLock(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	l, err := p.ReadLock()
	if err != nil || l != 0x3f {
		t.Fatalf("ReadLock() = %#x, %v", l, err)
	}
	if err := p.WriteLock(0x3c); err != nil {
		t.Fatal(err)
	}
	if tgt.Lock != 0x3c {
		t.Errorf("target lock %#x, want 0x3c", tgt.Lock)
	}
	frames := tgt.Frames()
	if f := frames[len(frames)-1]; f != [4]byte{0xac, 0xe0, 0x00, 0xfc} {
		t.Errorf("write lock frame % X", f)
	}
	if err := p.Unlock(); err != nil {
		t.Fatal(err)
	}
	if l, _ := p.ReadLock(); l != 0x3f {
		t.Errorf("lock after Unlock %#x", l)
	}
}

func TestErase(t *testing.T) {
	var slept time.Duration
	tgt, p := connect(t, "atmega8", WithSleep(func(d time.Duration) { slept = d }))
	tgt.Flash[100] = 0x12
	if err := p.Erase(); err != nil {
		t.Fatal(err)
	}
	if tgt.Flash[100] != 0xff {
		t.Error("flash not erased")
	}
	if slept != 2*time.Second {
		t.Errorf("last delay %v, want 2s", slept)
	}
}

func TestSignatureAndPart(t *testing.T) {
	tests := []struct {
		model     string
		sig       [3]byte
		flashSize int
		pageWords int
	}{
		{"atmega48", [3]byte{0x1e, 0x92, 0x05}, 4096, 32},
		{"atmega8", [3]byte{0x1e, 0x93, 0x07}, 8192, 32},
		{"atmega16", [3]byte{0x1e, 0x94, 0x03}, 16384, 64},
		{"atmega32", [3]byte{0x1e, 0x95, 0x02}, 32768, 64},
		{"atmega64", [3]byte{0x1e, 0x96, 0x02}, 65536, 128},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, p := connect(t, tt.model)
			sig, err := p.Signature()
			if err != nil || sig != tt.sig {
				t.Fatalf("Signature() = % X, %v", sig, err)
			}
			part, err := p.DetectPart()
			if err != nil {
				t.Fatal(err)
			}
			if part.FlashSize != tt.flashSize || part.PageWords != tt.pageWords {
				t.Errorf("DetectPart() = %v", part)
			}
		})
	}
}

func TestDetectUnknownPart(t *testing.T) {
	tgt := sim.New([3]byte{0x1e, 0x90, 0x01}, 1024, 0)
	p := New(tgt, WithSleep(noSleep))
	if err := p.Connect(); err != nil {
		t.Fatal(err)
	}
	_, err := p.DetectPart()
	var ue *UnknownPartError
	if !errors.As(err, &ue) || ue.Signature[1] != 0x90 {
		t.Errorf("DetectPart() error = %v, want *UnknownPartError", err)
	}
}
