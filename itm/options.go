// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/swo/itm/internal/regs"
)

type config struct {
	clock uint32 // core clock frequency, in Hz
	baud  uint32 // SWO byte rate, in Hz
	ch    int    // stimulus channel
	rate  time.Duration
	msg   *log.Logger
}

func newConfig() config {
	return config{
		baud: DefaultBaud,
	}
}

func (cfg *config) valid() error {
	if cfg.clock == 0 {
		return fmt.Errorf("itm: invalid clock frequency (0 Hz)")
	}
	if cfg.baud == 0 {
		return fmt.Errorf("itm: invalid SWO baud rate (0 Hz)")
	}
	if cfg.ch < 0 || cfg.ch >= regs.NumStim {
		return fmt.Errorf("itm: invalid stimulus channel %d", cfg.ch)
	}
	return nil
}

// Option configures a trace device.
type Option func(*config)

// WithClockFrequency sets the core clock frequency, in Hz, that drives
// the TPIU byte-rate divisor. The clock must be configured and running
// before bring-up; a zero value is rejected by NewDevice.
func WithClockFrequency(hz uint32) Option {
	return func(cfg *config) {
		cfg.clock = hz
	}
}

// WithBaud sets the SWO byte rate, in Hz.
func WithBaud(hz uint32) Option {
	return func(cfg *config) {
		cfg.baud = hz
	}
}

// WithChannel selects the stimulus channel enabled by bring-up and
// used by the standalone stream.
func WithChannel(ch int) Option {
	return func(cfg *config) {
		cfg.ch = ch
	}
}

// WithRate paces the standalone stream to one payload per period.
// A zero rate (the default) emits as fast as the stimulus FIFO drains.
func WithRate(rate time.Duration) Option {
	return func(cfg *config) {
		cfg.rate = rate
	}
}

// WithLogger sets the device logger.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}
