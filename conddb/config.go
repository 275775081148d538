// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import "math/bits"

// TraceConfig describes the trace setup of a board on the bench: its
// core clock frequency, the SWO byte rate and the mask of stimulus
// channels to enable.
type TraceConfig struct {
	Board    uint32 `json:"board"`
	ClockHz  uint32 `json:"clock_hz"`
	SWOBaud  uint32 `json:"swo_baud"`
	Channels uint32 `json:"channels"`
}

// Channel returns the lowest enabled stimulus channel, or 0 when the
// channel mask is empty.
func (cfg TraceConfig) Channel() int {
	if cfg.Channels == 0 {
		return 0
	}
	return bits.TrailingZeros32(cfg.Channels)
}
