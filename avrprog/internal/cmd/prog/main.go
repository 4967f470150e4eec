// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prog implements the in-system programming command chain.
package prog

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"

	"github.com/berke/avrprogni/avrprog/internal/isp"
	"github.com/berke/avrprogni/avrprog/internal/line"
	"github.com/berke/avrprogni/avrprog/internal/line/buspirate"
	"github.com/berke/avrprogni/avrprog/internal/line/ftdi"
	"github.com/berke/avrprogni/avrprog/internal/line/gpio"
	"github.com/berke/avrprogni/avrprog/internal/line/rpi"
	"github.com/berke/avrprogni/avrprog/internal/line/sim"
	"github.com/berke/avrprogni/avrprog/internal/util"
)

const Descr = "run a chain of in-system programming commands"

var transports = []string{"buspirate", "ftdi", "gpio", "rpi", "sim"}

// openLines opens the named transport. The meaning of port depends on it:
// the serial device (buspirate), the USB BUS:ADDR (ftdi) or the simulated
// model (sim). The GPIO transports use pins.
func openLines(transport, port, pins string) (line.Driver, error) {
	switch transport {
	case "sim":
		if port == "" {
			port = "atmega8"
		}
		return sim.NewModel(port)
	case "buspirate":
		if port == "" {
			return nil, errors.New("buspirate: the serial port must be given with -port")
		}
		return buspirate.Open(port)
	case "ftdi":
		return ftdi.Open(port)
	case "gpio", "rpi":
		p, err := line.ParsePins(pins)
		if err != nil {
			return nil, err
		}
		if transport == "rpi" {
			return rpi.Open(p)
		}
		return gpio.Open(p)
	}
	return nil, fmt.Errorf(
		"unknown transport %q (known: %s)",
		transport, strings.Join(transports, ", "),
	)
}

// loadTiming returns the named timing profile adjusted by the profile file
// and then by the key=value overrides.
func loadTiming(profile string, overrides []string) (isp.Timing, error) {
	t, err := isp.Profile(profile)
	if err != nil {
		return t, err
	}
	name, err := util.FindProfile(".")
	if err != nil {
		return t, err
	}
	if name != "" {
		ss, err := util.ReadProfile(name)
		if err != nil {
			return t, err
		}
		for _, s := range ss {
			if err := t.Set(s.Key, s.Value); err != nil {
				return t, fmt.Errorf("%s:%d: %w", name, s.Line, err)
			}
		}
	}
	for _, o := range overrides {
		k, v, ok := strings.Cut(o, "=")
		if !ok {
			return t, fmt.Errorf("-t %s: expected key=value", o)
		}
		if err := t.Set(k, v); err != nil {
			return t, err
		}
	}
	return t, nil
}

func printCommands(w *os.File) {
	names := slices.Sorted(maps.Keys(commands))
	maxLen := 0
	for _, name := range names {
		c := commands[name]
		if n := len(name + " " + strings.Join(c.args, " ")); maxLen < n {
			maxLen = n
		}
	}
	for _, name := range names {
		c := commands[name]
		usage := strings.TrimSpace(name + " " + strings.Join(c.args, " "))
		fmt.Fprintf(w, "  %-*s  %s\n", maxLen, usage, c.descr)
	}
}

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\n  %s [OPTIONS] COMMAND [ARGS] [COMMAND [ARGS]]...\nCommands:\n",
			cmd,
		)
		printCommands(os.Stderr)
		os.Stderr.WriteString("Options:\n")
		fs.PrintDefaults()
	}
	transport := fs.String(
		"line", "gpio",
		"transport: "+strings.Join(transports, ", "),
	)
	port := fs.String(
		"port", "",
		"serial `device` (buspirate), USB BUS:ADDR (ftdi) or model (sim: "+
			strings.Join(sim.Models(), ", ")+")",
	)
	pins := fs.String(
		"pins", "GPIO10,GPIO11,GPIO25,GPIO9",
		"`MOSI,SCK,RST,MISO` pin names (gpio) or BCM numbers (rpi)",
	)
	invert := fs.Bool("invert", false, "the lines are active-low")
	invertIn := fs.Bool("invert-input", false, "invert also the input line (requires -invert)")
	profile := fs.String(
		"profile", "default",
		"timing profile: "+strings.Join(isp.Profiles(), ", "),
	)
	var overrides []string
	fs.Func(
		"t",
		"timing `key=value` override, may be repeated; keys: "+
			strings.Join(isp.TimingKeys(), ", "),
		func(s string) error {
			overrides = append(overrides, s)
			return nil
		},
	)
	size := fs.Int("size", 8192, "image capacity and dump/verify range in `bytes`")
	verbose := fs.Bool("v", false, "log debug messages")
	quiet := fs.Bool("quiet", false, "log only warnings and errors, no progress bar")
	trace := fs.Bool("trace", false, "log every line transaction (implies -v)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}
	if *invertIn && !*invert {
		util.Fatal("-invert-input requires -invert")
	}
	if *size <= 0 || *size%2 != 0 {
		util.Fatal("-size %d: must be a positive even number", *size)
	}

	level := slog.LevelInfo
	switch {
	case *verbose || *trace:
		level = slog.LevelDebug
	case *quiet:
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: level},
	))

	timing, err := loadTiming(*profile, overrides)
	util.FatalErr("timing", err)

	drv, err := openLines(*transport, *port, *pins)
	util.FatalErr(*transport, err)
	var l line.Lines = drv
	if *invert {
		l = line.Invert(l, *invertIn)
	}
	if *trace {
		l = &line.Recorder{Lines: l, Logger: logger}
	}
	cfg := sessionConfig{
		timing: timing,
		logger: logger,
		out:    os.Stdout,
		size:   *size,
	}
	if !*quiet {
		cfg.progress = func(op string, done, total int) {
			util.Progress(op+":", done, total, 1, "of "+strconv.Itoa(total))
		}
	}
	s := newSession(l, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = s.run(ctx, fs.Args())
	stop()
	cerr := drv.Close()
	util.FatalErr("", err)
	util.FatalErr("close", cerr)
}
