// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bin

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/berke/avrprogni/avrprog/internal/flash"
	"github.com/berke/avrprogni/avrprog/internal/util"
)

const Descr = "convert an Intel HEX or ELF file to a binary image"

func Main(cmd string, args []string) {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\n  %s [OPTIONS] HEX|ELF [%s]\nOptions:\n",
			cmd, strings.ToUpper(cmd),
		)
		fs.PrintDefaults()
	}
	size := fs.Int("size", 65536, "program memory size in `bytes`")
	full := fs.Bool("full", false, "write the whole program memory, not only the loaded part")
	fs.Parse(args)
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		os.Exit(1)
	}
	in := fs.Arg(0)
	out := util.OutFile(in, filepath.Ext(in), fs.Arg(1), ".bin")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	img := flash.New(*size)
	n, err := util.LoadImage(in, img, logger)
	util.FatalErr("load", err)
	if *full {
		n = img.Cap()
	}
	w, err := os.Create(out)
	util.FatalErr("", err)
	defer w.Close()
	_, err = w.Write(img.Bytes()[:n])
	util.FatalErr("", err)
}
