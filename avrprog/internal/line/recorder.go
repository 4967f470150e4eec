// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package line

import (
	"io"
	"log/slog"
)

// Event is a single transaction seen by a Recorder: either a driven output
// word or a sampled input.
type Event struct {
	Out    Bits
	Sample bool // Event is an input sample, In holds the value
	In     bool
}

// Recorder passes all calls to Lines and keeps a log of them in Events. If
// Logger is set the events are logged at the debug level instead of kept.
type Recorder struct {
	Lines  Lines
	Logger *slog.Logger
	Events []Event
}

func (r *Recorder) SetOutputs(b Bits) error {
	if r.Logger != nil {
		r.Logger.Debug("tx", slog.String("out", b.String()))
	} else {
		r.Events = append(r.Events, Event{Out: b})
	}
	return r.Lines.SetOutputs(b)
}

func (r *Recorder) ReadInput() (bool, error) {
	v, err := r.Lines.ReadInput()
	if r.Logger != nil {
		r.Logger.Debug("rx", slog.Bool("miso", v))
	} else {
		r.Events = append(r.Events, Event{Sample: true, In: v})
	}
	return v, err
}

func (r *Recorder) Close() error {
	if c, ok := r.Lines.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Outputs returns the driven output words in order.
func (r *Recorder) Outputs() []Bits {
	var out []Bits
	for _, e := range r.Events {
		if !e.Sample {
			out = append(out, e.Out)
		}
	}
	return out
}

// Reset forgets the recorded events.
func (r *Recorder) Reset() {
	r.Events = r.Events[:0]
}
