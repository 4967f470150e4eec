// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package prog

import (
	"errors"
	"strings"
)

var ErrMissingArg = errors.New("missing argument")

// cursor walks the command line. Every command consumes its name and a fixed
// number of arguments, the next command starts right after them.
type cursor struct {
	args []string
}

func (c *cursor) more() bool {
	return len(c.args) != 0
}

func (c *cursor) next() string {
	a := c.args[0]
	c.args = c.args[1:]
	return a
}

// take consumes the arguments named in names. It consumes nothing if there
// are fewer arguments left.
func (c *cursor) take(names []string) ([]string, error) {
	n := len(names)
	if len(c.args) < n {
		return nil, &argError{names[len(c.args):]}
	}
	a := c.args[:n:n]
	c.args = c.args[n:]
	return a, nil
}

type argError struct {
	missing []string
}

func (e *argError) Error() string {
	return ErrMissingArg.Error() + " " + strings.Join(e.missing, " ")
}

func (e *argError) Unwrap() error {
	return ErrMissingArg
}
