// Copyright 2025 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package isp

import (
	"io"
	"log/slog"
	"time"
)

// ProgressFunc is called after every unit of work (word or page) of a long
// operation. done == total for the last call.
type ProgressFunc func(op string, done, total int)

// Config holds the Programmer configuration.
type Config struct {
	Timing   Timing
	Logger   *slog.Logger
	Sleep    func(time.Duration)
	Progress ProgressFunc
}

func defaultConfig() Config {
	return Config{
		Timing: DefaultTiming(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Sleep:  time.Sleep,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithTiming sets the delays and retry bounds.
func WithTiming(t Timing) Option {
	return func(c *Config) {
		c.Timing = t
	}
}

// WithLogger sets the logger. The default one discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithSleep replaces time.Sleep, mostly for tests and simulated targets.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(f ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = f
	}
}
