// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-lpc/swo/itm/internal/regs"
)

// Write pushes p down stimulus channel ch, packing four bytes to a
// 32-bit word (little-endian) and zero-padding the final partial word.
// The channel must have been enabled by Bringup.
//
// Write blocks: before each word it spins on the port's FIFO-ready
// bit until the hardware has drained enough to accept the push. There
// is no bound on the wait and no cancellation path; if the host-side
// reader is absent and the FIFO never drains, Write never returns.
// Bytes are neither dropped nor reordered.
func (dev *Device) Write(ch int, p []byte) error {
	if ch < 0 || ch >= regs.NumStim {
		return fmt.Errorf("itm: invalid stimulus channel %d", ch)
	}

	var word [4]byte
	for i := 0; i < len(p); i += 4 {
		word = [4]byte{}
		copy(word[:], p[i:])
		v := binary.LittleEndian.Uint32(word[:])

		for dev.regs.itm.stim.r(ch)&regs.ITM_STIM_FIFOREADY == 0 {
			if dev.err != nil {
				break
			}
		}
		dev.regs.itm.stim.w(ch, v)

		if dev.err != nil {
			return fmt.Errorf(
				"itm: could not push stimulus word (chan=%d): %w",
				ch, dev.err,
			)
		}
	}
	return nil
}

// Writer returns an io.Writer pushing bytes down stimulus channel ch.
func (dev *Device) Writer(ch int) io.Writer {
	return &stimWriter{dev: dev, ch: ch}
}

type stimWriter struct {
	dev *Device
	ch  int
}

func (w *stimWriter) Write(p []byte) (int, error) {
	err := w.dev.Write(w.ch, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}
