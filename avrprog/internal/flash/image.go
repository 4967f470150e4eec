// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flash provides the in-memory image of the target program memory.
package flash

import "fmt"

// Erased is the value of an erased flash byte.
const Erased = 0xff

// Image is a fixed capacity copy of the program memory. Bytes never written
// hold Erased. Len reports the high-water mark: the highest written address
// plus one.
type Image struct {
	data []byte
	hwm  int
}

// New returns an erased image of the given capacity in bytes.
func New(capacity int) *Image {
	data := make([]byte, capacity)
	for i := range data {
		data[i] = Erased
	}
	return &Image{data: data}
}

// RangeError is returned by Write for data that does not fit in the image.
type RangeError struct {
	Addr, N, Cap int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(
		"address %#04x+%d out of range (capacity %#x)", e.Addr, e.N, e.Cap,
	)
}

// Write copies p to the image at addr. Nothing is written if any part of p
// falls outside [0, Cap()).
func (img *Image) Write(addr int, p []byte) error {
	if addr < 0 || addr+len(p) > len(img.data) {
		return &RangeError{addr, len(p), len(img.data)}
	}
	copy(img.data[addr:], p)
	if end := addr + len(p); len(p) != 0 && end > img.hwm {
		img.hwm = end
	}
	return nil
}

// At returns the byte at addr or Erased if addr is outside the image.
func (img *Image) At(addr int) byte {
	if addr < 0 || addr >= len(img.data) {
		return Erased
	}
	return img.data[addr]
}

// Word returns the little-endian program word at the word address wa.
func (img *Image) Word(wa int) uint16 {
	return uint16(img.At(2*wa)) | uint16(img.At(2*wa+1))<<8
}

// Len returns the high-water mark.
func (img *Image) Len() int { return img.hwm }

// Cap returns the capacity of the image in bytes.
func (img *Image) Cap() int { return len(img.data) }

// Bytes returns the whole image. The caller must not modify it.
func (img *Image) Bytes() []byte { return img.data }
