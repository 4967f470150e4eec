// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/berke/avrprogni/avrprog/internal/flash"
)

// Program memory opcodes.
const (
	opReadLo     = 0x20
	opReadHi     = 0x28
	opLoadLo     = 0x40 // load page buffer or write byte on byte-wise parts
	opLoadHi     = 0x48
	opWritePage  = 0x4c
	opLoadExtAdr = 0x4d
)

// readByte reads the flash byte at the byte address a.
func (p *Programmer) readByte(a int) (byte, error) {
	op := byte(opReadLo)
	if a&1 != 0 {
		op = opReadHi
	}
	r, err := p.Talk(op, byte(a>>9), byte(a>>1), 0x00)
	return byte(r), err
}

// readWord reads the program word at the word address wa.
func (p *Programmer) readWord(wa int) (uint16, error) {
	lo, err := p.readByte(2 * wa)
	if err != nil {
		return 0, err
	}
	hi, err := p.readByte(2*wa + 1)
	return uint16(hi)<<8 | uint16(lo), err
}

// WriteWord writes one program word on a part without the page buffer
// (AT90S1200 and alike). Every byte is read back up to Timing.GiveUp times
// until it matches.
func (p *Programmer) WriteWord(wa int, data uint16) (err error) {
	defer wrapErr("WriteWord", &err)
	if err = p.requireEnabled(); err != nil {
		return err
	}
	return p.writeWord(wa, data)
}

func (p *Programmer) writeWord(wa int, data uint16) error {
	halves := []struct {
		load, read byte
		v          byte
	}{
		{opLoadLo, opReadLo, byte(data)},
		{opLoadHi, opReadHi, byte(data >> 8)},
	}
	for i, h := range halves {
		if _, err := p.Talk(h.load, byte(wa>>8), byte(wa), h.v); err != nil {
			return err
		}
		var got byte
		for a := 1; a <= p.cfg.Timing.GiveUp; a++ {
			p.sleep(p.cfg.Timing.BytePoll)
			r, err := p.Talk(h.read, byte(wa>>8), byte(wa), 0x00)
			if err != nil {
				return err
			}
			if got = byte(r); got == h.v {
				break
			}
			if a == p.cfg.Timing.GiveUp {
				return &VerifyError{
					Addr: 2*wa + i, Want: h.v, Got: got, Attempts: a,
				}
			}
		}
	}
	return nil
}

// ProgramWords writes the loaded part of img word by word using WriteWord.
// It stops at the first word that fails.
func (p *Programmer) ProgramWords(ctx context.Context, img *flash.Image) (err error) {
	defer wrapErr("ProgramWords", &err)
	if err = p.requireEnabled(); err != nil {
		return err
	}
	words := (img.Len() + 1) / 2
	p.cfg.Logger.Info(
		"programming byte-wise",
		slog.Int("bytes", img.Len()), slog.Int("words", words),
	)
	for wa := 0; wa < words; wa++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = p.writeWord(wa, img.Word(wa)); err != nil {
			return err
		}
		p.progress("program", wa+1, words)
	}
	return nil
}

// ProgramPages writes the loaded part of img page by page. Pages with all
// bytes erased are not written. Every written page is polled for the
// completion and then verified, the first failure aborts the whole run.
// ctx is checked before every page.
func (p *Programmer) ProgramPages(ctx context.Context, img *flash.Image, pageWords int) (err error) {
	defer wrapErr("ProgramPages", &err)
	if err = p.requireEnabled(); err != nil {
		return err
	}
	if pageWords <= 0 || pageWords > 256 {
		return fmt.Errorf("bad page size: %d words", pageWords)
	}
	words := (img.Len() + 1) / 2
	pages := (words + pageWords - 1) / pageWords
	p.cfg.Logger.Info(
		"programming",
		slog.Int("words", words), slog.Int("pages", pages),
		slog.Int("pageWords", pageWords),
	)
	if _, err = p.Talk(opLoadExtAdr, 0x00, 0x00, 0x00); err != nil {
		return err
	}
	for pg := 0; pg < pages; pg++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = p.programPage(img, pg, pageWords); err != nil {
			return err
		}
		p.progress("program", pg+1, pages)
	}
	return nil
}

func (p *Programmer) programPage(img *flash.Image, pg, pageWords int) error {
	base := pg * pageWords // word address
	last := -1             // byte address of the last non-erased byte
	for i := 0; i < pageWords; i++ {
		a := 2 * (base + i)
		for k, op := range [2]byte{opLoadLo, opLoadHi} {
			b := img.At(a + k)
			if b != flash.Erased {
				last = a + k
			}
			if _, err := p.Talk(op, byte(i>>8), byte(i), b); err != nil {
				return err
			}
		}
	}
	if last < 0 {
		p.cfg.Logger.Info("skipping page (all-FF)", slog.Int("page", pg))
		return nil
	}
	p.cfg.Logger.Info(
		"writing page",
		slog.Int("page", pg), slog.String("addr", fmt.Sprintf("%#04x", 2*base)),
	)
	if _, err := p.Talk(opWritePage, byte(base>>8), byte(base), 0x00); err != nil {
		return err
	}

	// Wait for the last written byte to read back.
	want := img.At(last)
	var got byte
	tries := p.cfg.Timing.PagePollTries
	for t := 0; ; t++ {
		if t == tries {
			return &PageCommitError{
				Page: pg, Addr: last, Want: want, Got: got, Tries: tries,
			}
		}
		var err error
		if got, err = p.readByte(last); err != nil {
			return err
		}
		if got == want {
			break
		}
		p.sleep(p.cfg.Timing.PagePoll)
	}

	for a := 2 * base; a < 2*(base+pageWords); a++ {
		got, err := p.readByte(a)
		if err != nil {
			return err
		}
		if want := img.At(a); got != want {
			return &VerifyError{Addr: a, Want: want, Got: got}
		}
	}
	p.cfg.Logger.Debug("page verified", slog.Int("page", pg))
	return nil
}

// ReadFlash reads n bytes of the program memory starting at the byte
// address addr.
func (p *Programmer) ReadFlash(ctx context.Context, addr, n int) (buf []byte, err error) {
	defer wrapErr("ReadFlash", &err)
	if err = p.requireEnabled(); err != nil {
		return nil, err
	}
	if addr < 0 || n < 0 {
		return nil, errors.New("negative address or length")
	}
	buf = make([]byte, n)
	for i := range buf {
		if i%256 == 0 {
			if err = ctx.Err(); err != nil {
				return nil, err
			}
		}
		if buf[i], err = p.readByte(addr + i); err != nil {
			return nil, err
		}
		if i%64 == 63 || i == n-1 {
			p.progress("read", i+1, n)
		}
	}
	return buf, nil
}

// Verify compares n bytes of img starting at the byte address addr (rounded
// down to the word boundary) with the program memory. All differing words
// are logged and returned in a *MismatchError.
func (p *Programmer) Verify(ctx context.Context, img *flash.Image, addr, n int) (err error) {
	defer wrapErr("Verify", &err)
	if err = p.requireEnabled(); err != nil {
		return err
	}
	first, end := addr/2, (addr+n+1)/2
	var mm []Mismatch
	for wa := first; wa < end; wa++ {
		if (wa-first)%128 == 0 {
			if err = ctx.Err(); err != nil {
				return err
			}
		}
		got, err := p.readWord(wa)
		if err != nil {
			return err
		}
		if want := img.Word(wa); got != want {
			p.cfg.Logger.Warn(
				"verify error",
				slog.String("addr", fmt.Sprintf("%#04x", 2*wa)),
				slog.String("file", fmt.Sprintf("%04x", want)),
				slog.String("chip", fmt.Sprintf("%04x", got)),
			)
			mm = append(mm, Mismatch{WordAddr: wa, Want: want, Got: got})
		}
		if d := wa - first + 1; d%32 == 0 || wa == end-1 {
			p.progress("verify", d, end-first)
		}
	}
	if len(mm) != 0 {
		return &MismatchError{mm}
	}
	return nil
}
