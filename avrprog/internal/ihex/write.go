// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ihex

import (
	"bytes"
	"io"

	"github.com/berke/avrprogni/avrprog/internal/flash"
	"github.com/marcinbor85/gohex"
)

// LineLength is the number of data bytes per record written by Write.
const LineLength = 16

// zeroExtLinear is the extended linear address record for the first 64 KiB.
var zeroExtLinear = []byte(":020000040000FA")

// Write writes data, located at the base address, as Intel HEX data records
// of LineLength bytes (":10AAAA00...CC") followed by the EOF record. The
// output starts with a data record if all data lies in the first 64 KiB.
func Write(w io.Writer, base uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(base, data); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := mem.DumpIntelHex(&buf, LineLength); err != nil {
		return err
	}
	out := buf.Bytes()
	if len(out) >= len(zeroExtLinear) && bytes.EqualFold(out[:len(zeroExtLinear)], zeroExtLinear) {
		out = bytes.TrimLeft(out[len(zeroExtLinear):], "\r\n")
	}
	_, err := w.Write(out)
	return err
}

// WriteImage writes the loaded part of img, rounded up to whole program
// words.
func WriteImage(w io.Writer, img *flash.Image) error {
	n := (img.Len() + 1) &^ 1
	if n > img.Cap() {
		n = img.Cap()
	}
	return Write(w, 0, img.Bytes()[:n])
}

// Checksum returns the two's complement of the sum of the record bytes, so
// that the bytes of a well formed record, checksum included, sum to zero.
func Checksum(rec []byte) byte {
	var sum byte
	for _, b := range rec {
		sum += b
	}
	return -sum
}
