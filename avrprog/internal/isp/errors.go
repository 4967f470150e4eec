// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoDevice   = errors.New("no device found")
	ErrNotEnabled = errors.New("programming mode not enabled")
)

// Error records the failed operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "isp: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

// VerifyError reports a flash byte that does not read back as written.
// Addr is a byte address.
type VerifyError struct {
	Addr     int
	Want     byte
	Got      byte
	Attempts int // number of read backs, 0 for a plain verify
}

func (e *VerifyError) Error() string {
	s := fmt.Sprintf(
		"byte %#04x written as %#02x reads back as %#02x",
		e.Addr, e.Want, e.Got,
	)
	if e.Attempts > 0 {
		s += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return s
}

// PageCommitError reports a page whose write never completed. Addr is the
// byte address of the polled byte.
type PageCommitError struct {
	Page  int
	Addr  int
	Want  byte
	Got   byte
	Tries int
}

func (e *PageCommitError) Error() string {
	return fmt.Sprintf(
		"page %d: polling failed after %d tries, byte %#04x: want %#02x got %#02x",
		e.Page, e.Tries, e.Addr, e.Want, e.Got,
	)
}

// Mismatch is a program word that differs between the image and the chip.
type Mismatch struct {
	WordAddr int
	Want     uint16
	Got      uint16
}

// MismatchError lists all differing words found by Verify.
type MismatchError struct {
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors", len(e.Mismatches))
	for i, m := range e.Mismatches {
		if i == 8 {
			b.WriteString(", ...")
			break
		}
		fmt.Fprintf(&b, ", %#04x: file %04x chip %04x", m.WordAddr*2, m.Want, m.Got)
	}
	return b.String()
}

// UnknownPartError reports an unsupported flash size code in the signature.
type UnknownPartError struct {
	Signature [3]byte
}

func (e *UnknownPartError) Error() string {
	return fmt.Sprintf(
		"unknown part: signature %02x %02x %02x",
		e.Signature[0], e.Signature[1], e.Signature[2],
	)
}
