// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package line

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

type latch struct {
	out Bits
	in  bool
}

func (l *latch) SetOutputs(b Bits) error  { l.out = b; return nil }
func (l *latch) ReadInput() (bool, error) { return l.in, nil }

func TestInvert(t *testing.T) {
	tests := []struct {
		name  string
		out   Bits
		want  Bits
		input bool
	}{
		{"all low", 0, MOSI | SCK | RST, false},
		{"clock", SCK, MOSI | RST, false},
		{"data and clock", MOSI | SCK, RST, true},
		{"all high", Mask, 0, true},
		{"extra bits ignored", 0xf0 | RST, MOSI | SCK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &latch{in: true}
			inv := Invert(l, tt.input)
			if err := inv.SetOutputs(tt.out); err != nil {
				t.Fatal(err)
			}
			if l.out != tt.want {
				t.Errorf("driven %v, want %v", l.out, tt.want)
			}
			v, _ := inv.ReadInput()
			if v != !tt.input {
				t.Errorf("input %v, want %v", v, !tt.input)
			}
		})
	}
}

func TestBitsString(t *testing.T) {
	tests := []struct {
		b    Bits
		want string
	}{
		{0, "0"},
		{MOSI, "MOSI"},
		{MOSI | SCK, "MOSI|SCK"},
		{Mask, "MOSI|SCK|RST"},
	}
	for _, tt := range tests {
		if got := tt.b.String(); got != tt.want {
			t.Errorf("Bits(%d).String() = %q, want %q", uint8(tt.b), got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	l := &latch{in: true}
	r := &Recorder{Lines: l}
	r.SetOutputs(MOSI)
	r.ReadInput()
	r.SetOutputs(MOSI | SCK)
	if len(r.Events) != 3 {
		t.Fatalf("got %d events, want 3", len(r.Events))
	}
	if !r.Events[1].Sample || !r.Events[1].In {
		t.Errorf("second event %+v, want a high sample", r.Events[1])
	}
	outs := r.Outputs()
	if len(outs) != 2 || outs[0] != MOSI || outs[1] != MOSI|SCK {
		t.Errorf("outputs %v", outs)
	}
	if l.out != MOSI|SCK {
		t.Errorf("lines not driven through the recorder: %v", l.out)
	}
	r.Reset()
	if len(r.Events) != 0 {
		t.Error("Reset kept events")
	}
}

func TestParsePins(t *testing.T) {
	p, err := ParsePins("GPIO10, GPIO11,GPIO8,GPIO9")
	if err != nil {
		t.Fatal(err)
	}
	if p != (Pins{"GPIO10", "GPIO11", "GPIO8", "GPIO9"}) {
		t.Errorf("ParsePins() = %+v", p)
	}
	if o := p.Outputs(); o[2] != "GPIO8" {
		t.Errorf("Outputs() = %v", o)
	}
	for _, s := range []string{"", "a,b,c", "a,b,,d", "a,b,c,d,e"} {
		if _, err := ParsePins(s); err == nil {
			t.Errorf("ParsePins(%q) succeeded", s)
		}
	}
}

func TestRecorderLogsInsteadOfKeeping(t *testing.T) {
	var log bytes.Buffer
	r := &Recorder{
		Lines:  &latch{},
		Logger: slog.New(slog.NewTextHandler(&log, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	for i := 0; i < 100; i++ {
		r.SetOutputs(SCK)
		r.ReadInput()
	}
	if len(r.Events) != 0 {
		t.Errorf("%d events kept while logging", len(r.Events))
	}
	if n := strings.Count(log.String(), "msg=tx"); n != 100 {
		t.Errorf("%d tx records logged, want 100", n)
	}
	if !strings.Contains(log.String(), "out=SCK") || !strings.Contains(log.String(), "miso=false") {
		t.Errorf("log lacks the event attributes:\n%s", log.String())
	}
}
