// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/berke/avrprogni/avrprog/internal/flash"
)

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*3)
		if b[i] == flash.Erased {
			b[i] = 0
		}
	}
	return b
}

func TestWriteWord(t *testing.T) {
	tgt, p := connect(t, "at90s1200")
	if err := p.WriteWord(5, 0x1234); err != nil {
		t.Fatalf("WriteWord() error = %v", err)
	}
	if tgt.Flash[10] != 0x34 || tgt.Flash[11] != 0x12 {
		t.Errorf("flash = % X", tgt.Flash[10:12])
	}
	if lo, hi := tgt.Count(opReadLo), tgt.Count(opReadHi); lo != 1 || hi != 1 {
		t.Errorf("read backs: low %d, high %d, want 1 and 1", lo, hi)
	}
}

func TestWriteWordGivesUp(t *testing.T) {
	tgt, p := connect(t, "at90s1200")
	tgt.Stuck = map[int]byte{10: 0x00}
	err := p.WriteWord(5, 0x1234)
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("WriteWord() error = %v, want *VerifyError", err)
	}
	if ve.Addr != 10 || ve.Want != 0x34 || ve.Got != 0x00 || ve.Attempts != 10 {
		t.Errorf("error %+v", *ve)
	}
	if n := tgt.Count(opReadLo); n != 10 {
		t.Errorf("%d read backs, want 10", n)
	}
	if n := tgt.Count(opLoadHi); n != 0 {
		t.Errorf("high byte written after a failed low byte")
	}
}

func TestWriteWordBusy(t *testing.T) {
	tgt, p := connect(t, "at90s1200")
	tgt.BusyPolls = 3
	if err := p.WriteWord(0, 0xbeef); err != nil {
		t.Fatal(err)
	}
	if n := tgt.Count(opReadLo); n != 4 {
		t.Errorf("%d read backs of the low byte, want 4", n)
	}
}

func TestProgramWords(t *testing.T) {
	tgt, p := connect(t, "at90s1200")
	img := flash.New(1024)
	data := []byte{0x0c, 0xc0, 0x0f, 0xef, 0xb4}
	img.Write(0, data)
	var calls, last int
	p.cfg.Progress = func(op string, done, total int) {
		calls++
		last = done
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}
	if err := p.ProgramWords(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	want := append(data, 0xff)
	if !bytes.Equal(tgt.Flash[:6], want) {
		t.Errorf("flash = % X, want % X", tgt.Flash[:6], want)
	}
	if calls != 3 || last != 3 {
		t.Errorf("progress called %d times, last done %d", calls, last)
	}
}

func TestProgramPages(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	tgt.BusyPolls = 5
	img := flash.New(8192)
	img.Write(0, pattern(64, 1))   // page 0
	img.Write(128, pattern(4, 7)) // page 2, page 1 stays erased
	if err := p.ProgramPages(context.Background(), img, 32); err != nil {
		t.Fatalf("ProgramPages() error = %v", err)
	}
	if !bytes.Equal(tgt.Flash[:192], img.Bytes()[:192]) {
		t.Errorf("flash differs from the image")
	}
	if n := tgt.Count(opLoadExtAdr); n != 1 {
		t.Errorf("%d extended address commands, want 1", n)
	}
	var commits []int
	for _, f := range tgt.Frames() {
		if f[0] == opWritePage {
			commits = append(commits, int(f[1])<<8|int(f[2]))
		}
	}
	if len(commits) != 2 || commits[0] != 0 || commits[1] != 64 {
		t.Errorf("page writes at word addresses %v, want [0 64]", commits)
	}
	if n := tgt.Count(opLoadLo); n != 3*32 {
		t.Errorf("%d page loads, want %d", n, 3*32)
	}
}

func TestProgramPagesSkipsErased(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	img := flash.New(8192)
	img.Write(0, bytes.Repeat([]byte{flash.Erased}, 128))
	if err := p.ProgramPages(context.Background(), img, 32); err != nil {
		t.Fatal(err)
	}
	if n := tgt.Count(opWritePage); n != 0 {
		t.Errorf("%d page writes for an erased image", n)
	}
}

func TestProgramPagesCommitTimeout(t *testing.T) {
	tm := DefaultTiming()
	tm.PagePollTries = 50
	tgt, p := connect(t, "atmega8", WithTiming(tm))
	img := flash.New(8192)
	img.Write(0, pattern(128, 1))
	tgt.Stuck = map[int]byte{63: ^img.At(63)}
	err := p.ProgramPages(context.Background(), img, 32)
	var pe *PageCommitError
	if !errors.As(err, &pe) {
		t.Fatalf("ProgramPages() error = %v, want *PageCommitError", err)
	}
	if pe.Page != 0 || pe.Addr != 63 || pe.Tries != 50 || pe.Want != img.At(63) {
		t.Errorf("error %+v", *pe)
	}
	if n := tgt.Count(opWritePage); n != 1 {
		t.Errorf("%d page writes, want 1 (no page after the failed one)", n)
	}
}

func TestProgramPagesVerifyError(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	img := flash.New(8192)
	img.Write(0, pattern(128, 1))
	tgt.Stuck = map[int]byte{70: ^img.At(70)}
	err := p.ProgramPages(context.Background(), img, 32)
	var ve *VerifyError
	if !errors.As(err, &ve) {
		t.Fatalf("ProgramPages() error = %v, want *VerifyError", err)
	}
	if ve.Addr != 70 || ve.Want != img.At(70) || ve.Got != ^img.At(70) {
		t.Errorf("error %+v", *ve)
	}
	if n := tgt.Count(opWritePage); n != 2 {
		t.Errorf("%d page writes, want 2", n)
	}
}

func TestProgramPagesCanceled(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	img := flash.New(8192)
	img.Write(0, pattern(256, 1))
	ctx, cancel := context.WithCancel(context.Background())
	p.cfg.Progress = func(op string, done, total int) {
		if done == 2 {
			cancel()
		}
	}
	err := p.ProgramPages(ctx, img, 32)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProgramPages() error = %v, want context.Canceled", err)
	}
	if n := tgt.Count(opWritePage); n != 2 {
		t.Errorf("%d pages written, want 2", n)
	}
}

func TestProgramPagesBadSize(t *testing.T) {
	_, p := connect(t, "atmega8")
	if err := p.ProgramPages(context.Background(), flash.New(64), 0); err == nil {
		t.Error("ProgramPages() with a zero page size succeeded")
	}
}

func TestReadFlash(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	copy(tgt.Flash[0x100:], pattern(40, 9))
	got, err := p.ReadFlash(context.Background(), 0x100, 40)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, tgt.Flash[0x100:0x128]) {
		t.Errorf("ReadFlash() = % X", got)
	}
}

func TestVerify(t *testing.T) {
	tgt, p := connect(t, "atmega8")
	img := flash.New(8192)
	img.Write(0, pattern(64, 1))
	copy(tgt.Flash, img.Bytes()[:64])
	if err := p.Verify(context.Background(), img, 0, 64); err != nil {
		t.Fatalf("Verify() of equal memories error = %v", err)
	}
	tgt.Flash[6] ^= 0x01
	tgt.Flash[41] ^= 0x80
	err := p.Verify(context.Background(), img, 0, 64)
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("Verify() error = %v, want *MismatchError", err)
	}
	if len(me.Mismatches) != 2 {
		t.Fatalf("mismatches %+v", me.Mismatches)
	}
	m := me.Mismatches[1]
	if m.WordAddr != 20 || m.Want != img.Word(20) || m.Got != img.Word(20)^0x8000 {
		t.Errorf("mismatch %+v", m)
	}
	if me.Mismatches[0].WordAddr != 3 {
		t.Errorf("first mismatch at word %d, want 3", me.Mismatches[0].WordAddr)
	}
}
