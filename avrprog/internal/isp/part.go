// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import "fmt"

// Part describes the program memory of a target.
type Part struct {
	Code      byte // second signature byte
	FlashSize int  // bytes
	PageWords int
}

func (p Part) String() string {
	return fmt.Sprintf(
		"flash %d bytes, page %d words (code %#02x)",
		p.FlashSize, p.PageWords, p.Code,
	)
}

var parts = map[byte]Part{
	0x92: {0x92, 4096, 32},
	0x93: {0x93, 8192, 32},
	0x94: {0x94, 16384, 64},
	0x95: {0x95, 32768, 64},
	0x96: {0x96, 65536, 128},
}

// LookupPart returns the part described by the signature.
func LookupPart(sig [3]byte) (Part, error) {
	part, ok := parts[sig[1]]
	if !ok {
		return Part{}, &UnknownPartError{sig}
	}
	return part, nil
}

// DetectPart reads the signature and returns the program memory geometry.
func (p *Programmer) DetectPart() (Part, error) {
	sig, err := p.Signature()
	if err != nil {
		return Part{}, err
	}
	return LookupPart(sig)
}
