// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"testing"
	"time"
)

func TestTimingSet(t *testing.T) {
	tests := []struct {
		key, value string
		check      func(Timing) bool
		wantErr    bool
	}{
		{"erase", "20ms", func(t Timing) bool { return t.Erase == 20*time.Millisecond }, false},
		{"Settle", "5", func(t Timing) bool { return t.Settle == 5*time.Microsecond }, false},
		{" halfbit ", " 2us", func(t Timing) bool { return t.HalfBit == 2*time.Microsecond }, false},
		{"pagepolltries", "200", func(t Timing) bool { return t.PagePollTries == 200 }, false},
		{"giveup", "0", nil, true},
		{"enableattempts", "x", nil, true},
		{"erase", "-1s", nil, true},
		{"erase", "soon", nil, true},
		{"nosuchkey", "1", nil, true},
	}
	for _, tt := range tests {
		tm := DefaultTiming()
		err := tm.Set(tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if tm != DefaultTiming() {
				t.Errorf("Set(%q, %q) modified the timing on error", tt.key, tt.value)
			}
			continue
		}
		if !tt.check(tm) {
			t.Errorf("Set(%q, %q) = %+v", tt.key, tt.value, tm)
		}
	}
}

func TestTimingKeys(t *testing.T) {
	keys := TimingKeys()
	if len(keys) != 13 {
		t.Errorf("%d keys: %v", len(keys), keys)
	}
	var tm Timing
	for _, k := range keys {
		if err := tm.Set(k, "1"); err != nil {
			t.Errorf("Set(%q) error = %v", k, err)
		}
	}
}

func TestProfiles(t *testing.T) {
	slow, err := Profile("slow")
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultTiming()
	if slow.Settle != 200*time.Microsecond || slow.HalfBit != 200*time.Microsecond {
		t.Errorf("slow settle %v half-bit %v", slow.Settle, slow.HalfBit)
	}
	if slow.Erase != 10*def.Erase || slow.GiveUp != def.GiveUp {
		t.Errorf("slow erase %v give up %d", slow.Erase, slow.GiveUp)
	}
	par, _ := Profile("parallel")
	if par.HalfBit != 3*time.Microsecond || par.BytePoll != 5*time.Millisecond {
		t.Errorf("parallel %+v", par)
	}
	if _, err := Profile("fast"); err == nil {
		t.Error("Profile(fast) succeeded")
	}
	if names := Profiles(); len(names) != 3 || names[0] != "default" {
		t.Errorf("Profiles() = %v", names)
	}
}

func TestTimingSlowKeepsCalibration(t *testing.T) {
	tm := DefaultTiming()
	tm.Set("erase", "20ms")
	tm.Set("halfbit", "50us")
	slow := tm.Slow()
	if slow.Erase != 200*time.Millisecond {
		t.Errorf("slow erase %v, want 200ms", slow.Erase)
	}
	if slow.Settle != 200*time.Microsecond || slow.HalfBit != 500*time.Microsecond {
		t.Errorf("slow settle %v half-bit %v", slow.Settle, slow.HalfBit)
	}
	if DefaultTiming().Slow() != SlowTiming() {
		t.Error("SlowTiming differs from the slowed default")
	}
}
