// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package line

import (
	"fmt"
	"strings"
)

// Pins names the four pins used by a GPIO transport.
type Pins struct {
	MOSI, SCK, RST, MISO string
}

// ParsePins parses the "MOSI,SCK,RST,MISO" list of pin names.
func ParsePins(s string) (Pins, error) {
	f := strings.Split(s, ",")
	if len(f) != 4 {
		return Pins{}, fmt.Errorf("pins: %q: want MOSI,SCK,RST,MISO", s)
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
		if f[i] == "" {
			return Pins{}, fmt.Errorf("pins: %q: empty pin name", s)
		}
	}
	return Pins{f[0], f[1], f[2], f[3]}, nil
}

// Outputs returns the names of the output pins in the MOSI, SCK, RST order.
func (p Pins) Outputs() [3]string {
	return [3]string{p.MOSI, p.SCK, p.RST}
}
