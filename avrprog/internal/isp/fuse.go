// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"fmt"
	"log/slog"
)

// Fuses holds the low and high fuse bytes.
type Fuses struct {
	Lo, Hi byte
}

func (f Fuses) String() string {
	return fmt.Sprintf("hi=%#02x lo=%#02x", f.Hi, f.Lo)
}

// Erase erases the program memory and the lock bits and waits Timing.Erase.
func (p *Programmer) Erase() (err error) {
	defer wrapErr("Erase", &err)
	if err = p.requireEnabled(); err != nil {
		return err
	}
	p.cfg.Logger.Info("erasing")
	if _, err = p.Talk(0xac, 0x80, 0x00, 0x00); err != nil {
		return err
	}
	p.sleep(p.cfg.Timing.Erase)
	return nil
}

// ReadSignature reads the signature byte i (0 to 2).
func (p *Programmer) ReadSignature(i int) (b byte, err error) {
	defer wrapErr("ReadSignature", &err)
	if err = p.requireEnabled(); err != nil {
		return 0, err
	}
	r, err := p.Talk(0x30, 0x00, byte(i&3), 0x00)
	return byte(r), err
}

// Signature reads the three signature bytes.
func (p *Programmer) Signature() (sig [3]byte, err error) {
	for i := range sig {
		if sig[i], err = p.ReadSignature(i); err != nil {
			return
		}
	}
	return
}

func (p *Programmer) ReadFuses() (f Fuses, err error) {
	defer wrapErr("ReadFuses", &err)
	if err = p.requireEnabled(); err != nil {
		return
	}
	r, err := p.Talk(0x50, 0x00, 0x00, 0x00)
	if err != nil {
		return
	}
	f.Lo = byte(r)
	r, err = p.Talk(0x58, 0x08, 0x00, 0x00)
	f.Hi = byte(r)
	return
}

// WriteFuses writes the low then the high fuse byte. The written values are
// not read back.
func (p *Programmer) WriteFuses(f Fuses) (err error) {
	defer wrapErr("WriteFuses", &err)
	if err = p.requireEnabled(); err != nil {
		return
	}
	p.cfg.Logger.Info("writing fuse bytes", slog.String("fuses", f.String()))
	for _, c := range [][2]byte{{0xa0, f.Lo}, {0xa8, f.Hi}} {
		if _, err = p.Talk(0xac, c[0], 0x00, c[1]); err != nil {
			return
		}
		p.sleep(p.cfg.Timing.FuseWrite)
	}
	return
}

// ReadLock reads the six lock bits.
func (p *Programmer) ReadLock() (l byte, err error) {
	defer wrapErr("ReadLock", &err)
	if err = p.requireEnabled(); err != nil {
		return
	}
	r, err := p.Talk(0x98, 0x00, 0x00, 0x00)
	return byte(r) & 0x3f, err
}

// WriteLock writes the lock bits l. The written value is not read back.
func (p *Programmer) WriteLock(l byte) (err error) {
	defer wrapErr("WriteLock", &err)
	if err = p.requireEnabled(); err != nil {
		return
	}
	p.cfg.Logger.Info("writing lock bits", slog.String("lock", fmt.Sprintf("%#02x", l)))
	_, err = p.Talk(0xac, 0xe0, 0x00, 0xc0|l)
	return
}

// Unlock sends the 0xAC 0xFF command that clears the lock bits of the
// parts that support it without a chip erase.
func (p *Programmer) Unlock() (err error) {
	defer wrapErr("Unlock", &err)
	if err = p.requireEnabled(); err != nil {
		return
	}
	_, err = p.Talk(0xac, 0xff, 0x00, 0x00)
	return
}
