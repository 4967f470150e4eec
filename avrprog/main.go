// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/berke/avrprogni/avrprog/internal/cmd/bin"
	"github.com/berke/avrprogni/avrprog/internal/cmd/hex"
	"github.com/berke/avrprogni/avrprog/internal/cmd/prog"
)

type tool struct {
	descr string
	main  func(cmd string, args []string)
}

var tools = map[string]tool{
	"bin":  {bin.Descr, bin.Main},
	"hex":  {hex.Descr, hex.Main},
	"prog": {prog.Descr, prog.Main},
}

func printToolList() {
	names := slices.Sorted(maps.Keys(tools))
	maxLen := 0
	for _, k := range names {
		if maxLen < len(k) {
			maxLen = len(k)
		}
	}
	uw := os.Stderr
	uw.WriteString("Usage:\n  avrprog TOOL [ARGUMENTS]\n")
	uw.WriteString("  avrprog [OPTIONS] COMMAND [ARGS] [COMMAND [ARGS]]...\n\n")
	uw.WriteString("Available tools:\n")
	for _, name := range names {
		fmt.Fprintf(uw, "  %*s  %s\n", maxLen, name, tools[name].descr)
	}
	uw.WriteString("\nWithout a tool name the arguments are passed to prog.\n")
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" {
		printToolList()
		return
	}
	if tool, ok := tools[os.Args[1]]; ok {
		tool.main(os.Args[1], os.Args[2:])
		return
	}
	prog.Main("avrprog", os.Args[1:])
}
