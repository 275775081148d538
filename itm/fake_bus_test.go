// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/go-lpc/swo/itm/internal/regs"
)

// fakeBus is a memory-backed model of the trace register window.
// It honors the CoreSight lock semantics: writes to a protected block
// are dropped until the block's LAR has been written with the unlock
// key, and any other LAR value relocks the block. Stimulus-port reads
// report not-ready for the first busy polls, then ready.
type fakeBus struct {
	mem map[int64]uint32

	locked map[string]bool
	jammed map[string]bool // blocks whose LAR never unlocks

	busy  int         // not-ready stimulus polls left before ready
	polls int         // stimulus-port status reads observed
	words []uint32    // words accepted on the stimulus ports
	ports map[int]int // words accepted, per stimulus port
}

func newFakeBus() *fakeBus {
	bus := &fakeBus{
		mem: make(map[int64]uint32),
		locked: map[string]bool{
			"tpiu": true,
			"dwt":  true,
			"itm":  true,
		},
		jammed: make(map[string]bool),
		ports:  make(map[int]int),
	}
	// TPIU reset state: continuous formatting enabled.
	bus.mem[regs.TPIU_FFCR] = 0x102
	return bus
}

func (bus *fakeBus) snapshot() map[int64]uint32 {
	mem := make(map[int64]uint32, len(bus.mem))
	for addr, v := range bus.mem {
		mem[addr] = v
	}
	return mem
}

func (bus *fakeBus) ReadAt(p []byte, off int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("fake bus: invalid access size %d", len(p))
	}
	addr := regs.PPB_BASE + off

	if isStim(addr) {
		bus.polls++
		if bus.busy > 0 {
			bus.busy--
			binary.LittleEndian.PutUint32(p, 0)
			return 4, nil
		}
		binary.LittleEndian.PutUint32(p, regs.ITM_STIM_FIFOREADY)
		return 4, nil
	}

	binary.LittleEndian.PutUint32(p, bus.mem[addr])
	return 4, nil
}

func (bus *fakeBus) WriteAt(p []byte, off int64) (int, error) {
	if len(p) != 4 {
		return 0, fmt.Errorf("fake bus: invalid access size %d", len(p))
	}
	var (
		addr = regs.PPB_BASE + off
		v    = binary.LittleEndian.Uint32(p)
	)

	switch addr {
	case regs.TPIU_LAR:
		bus.unlock("tpiu", v)
		return 4, nil
	case regs.DWT_LAR:
		bus.unlock("dwt", v)
		return 4, nil
	case regs.ITM_LAR:
		bus.unlock("itm", v)
		return 4, nil
	}

	if isStim(addr) {
		bus.words = append(bus.words, v)
		bus.ports[int(addr-regs.ITM_STIM)/4]++
		return 4, nil
	}

	if blk := blockOf(addr); blk != "" && bus.locked[blk] {
		// locked block: write silently ignored.
		return 4, nil
	}

	bus.mem[addr] = v
	return 4, nil
}

func (bus *fakeBus) unlock(blk string, v uint32) {
	if bus.jammed[blk] {
		bus.locked[blk] = true
		return
	}
	bus.locked[blk] = v != regs.LAR_UNLOCK_KEY
}

func isStim(addr int64) bool {
	return addr >= regs.ITM_STIM && addr < regs.ITM_STIM+4*regs.NumStim
}

func blockOf(addr int64) string {
	switch addr {
	case regs.TPIU_CSPSR, regs.TPIU_ACPR, regs.TPIU_SPPR, regs.TPIU_FFCR:
		return "tpiu"
	case regs.DWT_CTRL:
		return "dwt"
	case regs.ITM_TPR, regs.ITM_TCR, regs.ITM_TER:
		return "itm"
	}
	return "" // DEMCR and DBGMCU are not lock-protected
}

func newTestDevice(bus rwer, opts ...Option) *Device {
	dev := &Device{
		msg: log.New(io.Discard, "itm: ", 0),
		cfg: newConfig(),
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	dev.bind(bus)
	return dev
}
