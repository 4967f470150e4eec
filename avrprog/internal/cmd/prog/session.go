// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/berke/avrprogni/avrprog/internal/flash"
	"github.com/berke/avrprogni/avrprog/internal/isp"
	"github.com/berke/avrprogni/avrprog/internal/line"
	"github.com/berke/avrprogni/avrprog/internal/util"
)

// session holds the state shared by the commands of one command line.
type session struct {
	lines     line.Lines
	prog      *isp.Programmer
	log       *slog.Logger
	out       io.Writer // command results
	size      int       // image capacity and the dump/verify range
	sleep     func(time.Duration)
	connected bool
}

type sessionConfig struct {
	timing   isp.Timing
	logger   *slog.Logger
	out      io.Writer
	size     int
	sleep    func(time.Duration)
	progress isp.ProgressFunc
}

func newSession(l line.Lines, cfg sessionConfig) *session {
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.sleep == nil {
		cfg.sleep = time.Sleep
	}
	if cfg.out == nil {
		cfg.out = io.Discard
	}
	opts := []isp.Option{
		isp.WithTiming(cfg.timing),
		isp.WithLogger(cfg.logger),
		isp.WithSleep(cfg.sleep),
	}
	if cfg.progress != nil {
		opts = append(opts, isp.WithProgress(cfg.progress))
	}
	return &session{
		lines: l,
		prog:  isp.New(l, opts...),
		log:   cfg.logger,
		out:   cfg.out,
		size:  cfg.size,
		sleep: cfg.sleep,
	}
}

func (s *session) printf(f string, args ...any) {
	fmt.Fprintf(s.out, f, args...)
}

// run executes the command chain. It stops at the first failing command.
func (s *session) run(ctx context.Context, args []string) error {
	c := &cursor{args}
	for c.more() {
		name := c.next()
		cmd, ok := commands[name]
		if !ok {
			return fmt.Errorf("unknown command %q", name)
		}
		a, err := c.take(cmd.args)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if cmd.chip && !s.connected {
			if err = s.prog.Connect(); err != nil {
				return err
			}
			s.connected = true
		}
		if !cmd.chip {
			// The command drives the lines directly.
			s.connected = s.connected && cmd.keepsMode
		}
		s.log.Debug("command", slog.String("name", name), slog.Any("args", a))
		if err = cmd.run(ctx, s, a); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// load reads an Intel HEX or ELF file into a new image of s.size bytes and
// returns the image and its high-water mark.
func (s *session) load(name string) (*flash.Image, int, error) {
	img := flash.New(s.size)
	n, err := util.LoadImage(name, img, s.log)
	if err != nil {
		return nil, 0, err
	}
	return img, n, nil
}
