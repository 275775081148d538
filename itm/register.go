// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"io"

	"github.com/go-lpc/swo/itm/internal/regs"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// reg32 is a 32-bit memory-mapped hardware register. Reads and writes
// go through the device bus on every access: register traffic is
// externally observable and must not be cached or elided.
type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(dev *Device, rw rwer, addr int64) reg32 {
	off := addr - regs.PPB_BASE
	return reg32{
		r: func() uint32 {
			return dev.readU32(rw, off)
		},
		w: func(v uint32) {
			dev.writeU32(rw, off, v)
		},
	}
}

// stimBank is the ITM bank of stimulus-port FIFO registers.
// Reading port n returns its FIFO-ready status, writing pushes a word.
type stimBank struct {
	ports [regs.NumStim]reg32
}

func newStimBank(dev *Device, rw rwer, addr int64) stimBank {
	var stim stimBank
	for i := range stim.ports {
		stim.ports[i] = newReg32(dev, rw, addr+int64(4*i))
	}
	return stim
}

func (stim *stimBank) r(i int) uint32 {
	return stim.ports[i].r()
}

func (stim *stimBank) w(i int, v uint32) {
	stim.ports[i].w(v)
}
