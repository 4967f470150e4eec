// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hex

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/berke/avrprogni/avrprog/internal/flash"
	"github.com/berke/avrprogni/avrprog/internal/ihex"
	"github.com/berke/avrprogni/avrprog/internal/util"
)

const Descr = "convert an ELF file to the Intel HEX format"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\n  %s [OPTIONS] ELF [%s]\nOptions:\n",
			cmd, strings.ToUpper(cmd),
		)
		fs.PrintDefaults()
	}
	size := fs.Int(
		"size", 65536,
		"program memory size in `bytes`, sections above it are skipped",
	)
	list := fs.Bool("l", false, "list the loaded sections")
	fs.Parse(args)
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		os.Exit(1)
	}
	elf := fs.Arg(0)
	out := util.OutFile(elf, ".elf", fs.Arg(1), ".hex")
	sections, err := util.ReadELF(elf)
	util.FatalErr("readelf", err)
	img := flash.New(*size)
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	_, err = sections.Load(img, logger)
	util.FatalErr("load", err)
	if *list {
		for i, s := range sections {
			fmt.Printf(
				"%d: %-8s Vaddr: %#x Paddr: %#x DataLen: %d\n",
				i, s.Name, s.Vaddr, s.Paddr, len(s.Data),
			)
		}
	}
	w, err := os.Create(out)
	util.FatalErr("", err)
	defer w.Close()
	err = ihex.WriteImage(w, img)
	util.FatalErr("writehex", err)
}
