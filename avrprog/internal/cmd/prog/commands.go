// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/berke/avrprogni/avrprog/internal/ihex"
	"github.com/berke/avrprogni/avrprog/internal/isp"
	"github.com/berke/avrprogni/avrprog/internal/line"
	"github.com/berke/avrprogni/avrprog/internal/prototran"
	"github.com/berke/avrprogni/avrprog/internal/util"
)

type command struct {
	args  []string
	descr string

	// chip commands run with the target in the programming mode
	chip bool

	// keepsMode is set for the other commands that leave the lines alone
	keepsMode bool

	run func(ctx context.Context, s *session, a []string) error
}

var commands = map[string]command{
	"prototran": {
		args:  []string{"TAU", "X"},
		descr: "send the 32-bit X to the target firmware, TAU µs per clock phase",
		run:   runPrototran,
	},
	"powerup": {
		descr: "drive RST high and the other lines low",
		run: func(_ context.Context, s *session, _ []string) error {
			return s.prog.Release()
		},
	},
	"reset": {
		descr: "pulse the reset line low",
		run: func(_ context.Context, s *session, _ []string) error {
			return s.prog.Reset()
		},
	},
	"set": {
		args:  []string{"BITS"},
		descr: "drive the lines directly (1 MOSI, 2 SCK, 4 RST)",
		run:   runSet,
	},
	"slow": {
		descr:     "use the slow timing for the following commands",
		keepsMode: true,
		run: func(_ context.Context, s *session, _ []string) error {
			s.prog.SetTiming(s.prog.Timing().Slow())
			s.log.Info("using the slow timing")
			return nil
		},
	},
	"ihexchk": {
		args:      []string{"FILE"},
		descr:     "load FILE and report its size",
		keepsMode: true,
		run: func(_ context.Context, s *session, a []string) error {
			_, n, err := s.load(a[0])
			if err == nil {
				s.printf("Loaded %d (%#04x) bytes.\n", n, n)
			}
			return err
		},
	},
	"erase": {
		descr: "erase the flash and the lock bits",
		chip:  true,
		run: func(_ context.Context, s *session, _ []string) error {
			return s.prog.Erase()
		},
	},
	"unlock": {
		descr: "clear the lock bits",
		chip:  true,
		run: func(_ context.Context, s *session, _ []string) error {
			return s.prog.Unlock()
		},
	},
	"signature": {
		descr: "print the signature bytes",
		chip:  true,
		run:   runSignature,
	},
	"readfuse": {
		descr: "print the fuse bytes",
		chip:  true,
		run: func(_ context.Context, s *session, _ []string) error {
			f, err := s.prog.ReadFuses()
			if err == nil {
				s.printf("Read fuse bytes: %s\n", f)
			}
			return err
		},
	},
	"writefuse": {
		args:  []string{"HI", "LO"},
		descr: "write the high and low fuse bytes",
		chip:  true,
		run:   runWriteFuse,
	},
	"readlock": {
		descr: "print the lock bits",
		chip:  true,
		run: func(_ context.Context, s *session, _ []string) error {
			l, err := s.prog.ReadLock()
			if err == nil {
				s.printf("Read lock bits: %#02x\n", l)
			}
			return err
		},
	},
	"writelock": {
		args:  []string{"L"},
		descr: "write the lock bits",
		chip:  true,
		run: func(_ context.Context, s *session, a []string) error {
			l, err := util.ParseUint[uint8](a[0])
			if err != nil {
				return err
			}
			if err = s.prog.WriteLock(l); err == nil {
				s.printf("Wrote lock bits: %#02x\n", l)
			}
			return err
		},
	},
	"dump": {
		descr: "print the program memory as Intel HEX",
		chip:  true,
		run: func(ctx context.Context, s *session, _ []string) error {
			buf, err := s.prog.ReadFlash(ctx, 0, s.size)
			if err != nil {
				return err
			}
			return ihex.Write(s.out, 0, buf)
		},
	},
	"verify": {
		args:  []string{"FILE"},
		descr: "compare the program memory with FILE",
		chip:  true,
		run:   runVerify,
	},
	"1200program": {
		args:  []string{"FILE"},
		descr: "program FILE word by word (AT90S1200 and alike)",
		chip:  true,
		run:   runProgramWords,
	},
	"megaprogram": {
		args:  []string{"FILE"},
		descr: "program FILE page by page (ATmega)",
		chip:  true,
		run:   runProgramPages,
	},
}

func runPrototran(ctx context.Context, s *session, a []string) error {
	tau, err := util.ParseUint[uint32](a[0])
	if err != nil {
		return err
	}
	x, err := util.ParseUint[uint32](a[1])
	if err != nil {
		return err
	}
	k := prototran.NewLink(s.lines, time.Duration(tau)*time.Microsecond)
	k.Sleep = s.sleep
	k.Logger = s.log
	if err = k.Send(ctx, x); err == nil {
		s.log.Info("prototran: acknowledged", slog.String("x", fmt.Sprintf("%#x", x)))
	}
	return err
}

func runSet(_ context.Context, s *session, a []string) error {
	b, err := util.ParseUint[uint8](a[0])
	if err != nil {
		return err
	}
	if line.Bits(b)&^line.Mask != 0 {
		return fmt.Errorf("bad line bits %#x", b)
	}
	return s.lines.SetOutputs(line.Bits(b))
}

func runSignature(_ context.Context, s *session, _ []string) error {
	sig, err := s.prog.Signature()
	if err != nil {
		return err
	}
	for i, b := range sig {
		s.printf("signature[%#02x] = %#02x\n", i, b)
	}
	if part, err := isp.LookupPart(sig); err == nil {
		s.log.Info("known part", slog.String("part", part.String()))
	}
	return nil
}

func runWriteFuse(_ context.Context, s *session, a []string) error {
	hi, err := util.ParseUint[uint8](a[0])
	if err != nil {
		return err
	}
	lo, err := util.ParseUint[uint8](a[1])
	if err != nil {
		return err
	}
	f := isp.Fuses{Lo: lo, Hi: hi}
	if err = s.prog.WriteFuses(f); err == nil {
		s.printf("Wrote fuse bytes: %s\n", f)
	}
	return err
}

func runVerify(ctx context.Context, s *session, a []string) error {
	img, n, err := s.load(a[0])
	if err != nil {
		return err
	}
	s.printf("Loaded %d (%#04x) bytes.\n", n, n)
	if err = s.prog.Verify(ctx, img, 0, s.size); err != nil {
		return err
	}
	s.printf("Verified %d bytes.\n", s.size)
	return nil
}

func runProgramWords(ctx context.Context, s *session, a []string) error {
	img, n, err := s.load(a[0])
	if err != nil {
		return err
	}
	s.printf("Loaded %d bytes.\n", n)
	return s.prog.ProgramWords(ctx, img)
}

func runProgramPages(ctx context.Context, s *session, a []string) error {
	img, n, err := s.load(a[0])
	if err != nil {
		return err
	}
	s.printf("Loaded %d (%#04x) bytes.\n", n, n)
	part, err := s.prog.DetectPart()
	if err != nil {
		return err
	}
	s.printf("Flash size is %d bytes (page size %d)\n", part.FlashSize, part.PageWords)
	if n > part.FlashSize {
		return fmt.Errorf("program size %d exceeds flash size %d", n, part.FlashSize)
	}
	return s.prog.ProgramPages(ctx, img, part.PageWords)
}
