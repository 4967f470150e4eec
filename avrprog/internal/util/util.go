// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func Fatal(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

// FatalErr prints an error description and exits the program if the
// err != nil.
func FatalErr(what string, err error) {
	if err == nil {
		return
	}
	s := err.Error() + "\n"
	if what != "" {
		s = what + ": " + s
	}
	os.Stderr.WriteString(s)
	os.Exit(1)
}

// OutFile returns outName if not empty, otherwise the inName with the
// inSuffix replaced by outSuffix.
func OutFile(inName, inSuffix, outName, outSuffix string) string {
	if outName != "" {
		return outName
	}
	return strings.TrimSuffix(inName, inSuffix) + outSuffix
}

const (
	ptodo = "                         ] "
	pdone = " [========================="
)

// ProgressBar draws a text progress bar on a terminal.
type ProgressBar struct {
	W     io.Writer
	Scale int    // the printed value is cur/Scale
	Unit  string // printed after the current value
	buf   []byte
}

// Draw redraws the bar for cur of total units. The line is terminated when
// cur == total.
func (p *ProgressBar) Draw(pre string, cur, total int) {
	if total <= 0 {
		return
	}
	scale := max(p.Scale, 1)
	cur = min(cur, total)
	p.buf = p.buf[:0]
	p.buf = append(p.buf, '\r')
	p.buf = append(p.buf, pre...)
	done := 25 * cur / total
	p.buf = append(p.buf, pdone[:2+done]...)
	p.buf = append(p.buf, ptodo[done:]...)
	p.buf = strconv.AppendInt(p.buf, int64(cur/scale), 10)
	p.buf = append(p.buf, ' ')
	p.buf = append(p.buf, p.Unit...)
	if cur == total {
		p.buf = append(p.buf, '\n')
	}
	p.W.Write(p.buf)
}

// Progress draws the progress bar on the standard error.
func Progress(pre string, cur, max, scale int, post string) {
	stderrBar.Scale, stderrBar.Unit = scale, post
	stderrBar.Draw(pre, cur, max)
}

var stderrBar = ProgressBar{W: os.Stderr}
