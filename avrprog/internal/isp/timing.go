// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Timing holds all delays and retry bounds used by the protocol engine.
type Timing struct {
	Settle  time.Duration // after driving the outputs, before sampling MISO
	HalfBit time.Duration // before and after every rising clock edge

	PowerUpLow    time.Duration // all lines low after power is applied
	ResetPulse    time.Duration // positive pulse on the reset line
	PowerUpSettle time.Duration // before the first command
	ResetHold     time.Duration // reset command: time the reset line is low

	Erase     time.Duration // after the chip erase command
	FuseWrite time.Duration // after every fuse byte write
	BytePoll  time.Duration // before every read back of a byte-wise write
	PagePoll  time.Duration // between the page commit polls

	PagePollTries  int
	GiveUp         int // byte-wise write read backs
	EnableAttempts int
}

// DefaultTiming returns the timing of the data acquisition card wiring.
//
// The chip erase delay is 2 s. It is much longer than the 20 ms most parts
// need and can be calibrated with the erase key (see Set).
func DefaultTiming() Timing {
	return Timing{
		Settle:         time.Microsecond,
		HalfBit:        time.Microsecond,
		PowerUpLow:     100 * time.Microsecond,
		ResetPulse:     time.Millisecond,
		PowerUpSettle:  20 * time.Millisecond,
		ResetHold:      time.Second,
		Erase:          2 * time.Second,
		FuseWrite:      5 * time.Millisecond,
		PagePoll:       10 * time.Microsecond,
		PagePollTries:  10000,
		GiveUp:         10,
		EnableAttempts: 10,
	}
}

// ParallelTiming returns the timing of the parallel port wiring: longer
// clock phases and a fixed wait before every byte-wise read back.
func ParallelTiming() Timing {
	t := DefaultTiming()
	t.HalfBit = 3 * time.Microsecond
	t.BytePoll = 5 * time.Millisecond
	return t
}

// SlowTiming returns the timing for long or noisy cables.
func SlowTiming() Timing {
	return DefaultTiming().Slow()
}

// Slow returns t with the settle and half-bit delays raised to at least
// 20 µs and then every delay multiplied by 10.
func (t Timing) Slow() Timing {
	t.Settle = max(t.Settle, 20*time.Microsecond)
	t.HalfBit = max(t.HalfBit, 20*time.Microsecond)
	return t.Scale(10)
}

var profiles = map[string]func() Timing{
	"default":  DefaultTiming,
	"parallel": ParallelTiming,
	"slow":     SlowTiming,
}

// Profiles returns the sorted names of the known timing profiles.
func Profiles() []string {
	return slices.Sorted(maps.Keys(profiles))
}

// Profile returns the named timing profile.
func Profile(name string) (Timing, error) {
	p, ok := profiles[name]
	if !ok {
		return Timing{}, fmt.Errorf(
			"unknown timing profile %q (known: %s)",
			name, strings.Join(Profiles(), ", "),
		)
	}
	return p(), nil
}

// Scale returns t with every delay multiplied by n. The retry bounds are
// not changed.
func (t Timing) Scale(n int) Timing {
	d := time.Duration(n)
	t.Settle *= d
	t.HalfBit *= d
	t.PowerUpLow *= d
	t.ResetPulse *= d
	t.PowerUpSettle *= d
	t.ResetHold *= d
	t.Erase *= d
	t.FuseWrite *= d
	t.BytePoll *= d
	t.PagePoll *= d
	return t
}

func (t *Timing) fields() map[string]any {
	return map[string]any{
		"settle":         &t.Settle,
		"halfbit":        &t.HalfBit,
		"poweruplow":     &t.PowerUpLow,
		"resetpulse":     &t.ResetPulse,
		"powerupsettle":  &t.PowerUpSettle,
		"resethold":      &t.ResetHold,
		"erase":          &t.Erase,
		"fusewrite":      &t.FuseWrite,
		"bytepoll":       &t.BytePoll,
		"pagepoll":       &t.PagePoll,
		"pagepolltries":  &t.PagePollTries,
		"giveup":         &t.GiveUp,
		"enableattempts": &t.EnableAttempts,
	}
}

// TimingKeys returns the sorted list of keys accepted by Set.
func TimingKeys() []string {
	var t Timing
	return slices.Sorted(maps.Keys(t.fields()))
}

// Set sets the field named by key (case insensitive). Delays accept
// time.ParseDuration syntax or a plain integer number of microseconds,
// retry bounds accept a positive integer.
func (t *Timing) Set(key, value string) error {
	f, ok := t.fields()[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown timing key %q", key)
	}
	value = strings.TrimSpace(value)
	switch p := f.(type) {
	case *time.Duration:
		if us, err := strconv.ParseUint(value, 10, 32); err == nil {
			*p = time.Duration(us) * time.Microsecond
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if d < 0 {
			return fmt.Errorf("%s: negative delay %s", key, value)
		}
		*p = d
	case *int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if n < 1 {
			return fmt.Errorf("%s: bound must be at least 1", key)
		}
		*p = n
	}
	return nil
}
