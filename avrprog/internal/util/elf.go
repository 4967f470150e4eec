// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/berke/avrprogni/avrprog/internal/flash"
)

type Section struct {
	Name  string
	Vaddr uint64 // address in the memory during execution
	Paddr uint64 // load address, for AVR a program memory byte address
	Data  []byte
}

type Sections []*Section

// IsELF reports whether the named file starts with the ELF magic number.
func IsELF(name string) (bool, error) {
	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()
	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false, nil
	}
	return bytes.Equal(magic[:], []byte(elf.ELFMAG)), nil
}

// ReadELF reads the loadable sections of the program. The order of the
// returned sections is unspecified.
func ReadELF(name string) (Sections, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseELF(r)
}

// ParseELF is like ReadELF but reads the ELF file from r.
func ParseELF(r io.ReaderAt) (Sections, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ss := make(Sections, 0, 4)
	for _, s := range f.Sections {
		if s.Type != elf.SHT_PROGBITS || s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		// The initialized .data lives in RAM but is loaded from the
		// program memory: take the load address from the program headers.
		paddr := s.Addr
		for _, p := range f.Progs {
			if p.Type != elf.PT_LOAD {
				continue
			}
			if p.Off <= s.Offset && s.Offset < p.Off+p.Filesz {
				paddr = p.Paddr + s.Offset - p.Off
				break
			}
		}
		ss = append(ss, &Section{s.Name, s.Addr, paddr, data})
	}
	return ss, nil
}

// SortByPaddr sorts sections according to the Paddr field.
func (ss Sections) SortByPaddr() {
	slices.SortFunc(ss, func(a, b *Section) int {
		switch {
		case a.Paddr < b.Paddr:
			return -1
		case a.Paddr > b.Paddr:
			return 1
		}
		return 0
	})
}

// Load writes the sections to img at their load addresses and returns the
// high-water mark. Sections outside img (eg. .eeprom and .fuse at 0x810000
// and above) are skipped and reported at the warning level (logger may be
// nil).
func (ss Sections) Load(img *flash.Image, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ss.SortByPaddr()
	n := 0
	for _, s := range ss {
		end := s.Paddr + uint64(len(s.Data))
		if end > uint64(img.Cap()) {
			logger.Warn(
				"elf: skipping section outside the program memory",
				slog.String("section", s.Name),
				slog.String("addr", fmt.Sprintf("%#x", s.Paddr)),
				slog.Int("len", len(s.Data)),
			)
			continue
		}
		if int(s.Paddr) < n {
			return 0, fmt.Errorf("elf: section '%s' overlaps the previous one", s.Name)
		}
		if err := img.Write(int(s.Paddr), s.Data); err != nil {
			return 0, err
		}
		n = int(end)
	}
	return n, nil
}
