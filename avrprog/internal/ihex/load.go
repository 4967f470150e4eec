// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ihex reads Intel HEX files into a flash image and writes flash
// contents as Intel HEX records.
//
// The loader is lenient: lines that do not start with ':' and records of
// unknown type are reported and skipped, data records outside the image are
// reported and dropped. Addresses are 16-bit, so an extended linear address
// record is accepted silently only if it selects the first 64 KiB. A record
// with a wrong length or checksum aborts the whole load.
package ihex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/berke/avrprogni/avrprog/internal/flash"
)

const (
	recData      = 0x00
	recEOF       = 0x01
	recExtLinear = 0x04
)

var (
	ErrMalformedLine   = errors.New("malformed line")
	ErrBadRecordLength = errors.New("bad record length")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrAddressRange    = errors.New("address out of range")
)

// Error reports a fatal problem found on the given line of the input.
type Error struct {
	Line int
	Err  error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return fmt.Sprintf("ihex: line %d: %s", e.Line, e.Err)
}

// Load opens the named file and loads it into img. See LoadReader.
func Load(name string, img *flash.Image, logger *slog.Logger) (int, error) {
	f, err := os.Open(name)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return LoadReader(f, img, logger)
}

// LoadReader parses Intel HEX records from r and writes the data records to
// img. It stops at the first EOF record or at the end of the input and
// returns the high-water mark of the loaded data. Non-fatal problems are
// logged at the warning level (logger may be nil).
func LoadReader(r io.Reader, img *flash.Image, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	n := 0
	sc := bufio.NewScanner(r)
	for lineNum := 1; sc.Scan(); lineNum++ {
		line := sc.Bytes()
		if len(line) == 0 || line[0] != ':' {
			logger.Warn("ihex: ignoring line", slog.Int("line", lineNum))
			continue
		}
		rec := decode(line[1:])
		if len(rec) < 2 {
			return 0, &Error{lineNum, ErrMalformedLine}
		}
		length := int(rec[0])
		if length+5 != len(rec) {
			return 0, &Error{
				lineNum,
				fmt.Errorf(
					"%w: %d data bytes declared, %d bytes decoded",
					ErrBadRecordLength, length, len(rec),
				),
			}
		}
		if c := Checksum(rec); c != 0 {
			return 0, &Error{
				lineNum, fmt.Errorf("%w: sum is %#02x", ErrChecksum, -c),
			}
		}
		switch typ := rec[3]; typ {
		case recData:
			if length == 0 {
				continue
			}
			addr := int(rec[1])<<8 | int(rec[2])
			if err := img.Write(addr, rec[4:4+length]); err != nil {
				logger.Warn(
					"ihex: "+ErrAddressRange.Error(),
					slog.Int("line", lineNum),
					slog.String("addr", fmt.Sprintf("%#04x", addr)),
					slog.Int("len", length),
				)
				continue
			}
			n = max(n, addr+length)
		case recEOF:
			return n, nil
		default:
			if typ == recExtLinear && length == 2 && rec[4]|rec[5] == 0 {
				continue // upper address 0 changes nothing
			}
			logger.Warn(
				"ihex: unknown record type, ignoring",
				slog.Int("line", lineNum),
				slog.String("type", fmt.Sprintf("%#02x", typ)),
			)
		}
	}
	return n, sc.Err()
}

// decode decodes pairs of hex digits until the first pair that is not.
func decode(s []byte) []byte {
	var rec []byte
	for i := 0; i+1 < len(s); i += 2 {
		hi, ok1 := unhex(s[i])
		lo, ok2 := unhex(s[i+1])
		if !ok1 || !ok2 {
			break
		}
		rec = append(rec, hi<<4|lo)
	}
	return rec
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
