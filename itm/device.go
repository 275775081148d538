// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/go-lpc/swo/internal/mmap"
	"github.com/go-lpc/swo/itm/internal/regs"
)

// ErrTaken is returned by NewDevice when the trace peripherals have
// already been acquired by this process.
var ErrTaken = errors.New("itm: trace peripherals already taken")

// taken guards the one-time ownership transfer of the trace register
// set. It is acquired by NewDevice and held for the lifetime of the
// process: Close does not release it.
var taken uint32

type pins struct {
	demcr reg32

	tpiu struct {
		lar   reg32
		cspsr reg32
		acpr  reg32
		sppr  reg32
		ffcr  reg32
	}

	dwt struct {
		lar  reg32
		ctrl reg32
	}

	itm struct {
		lar  reg32
		tpr  reg32
		tcr  reg32
		ter  reg32
		stim stimBank
	}

	dbgmcu struct {
		cr reg32
	}
}

// Device gives exclusive access to the trace subsystem of a Cortex-M
// target, mapped from a devmem-like file.
type Device struct {
	msg *log.Logger
	mem struct {
		fd  *os.File
		ppb *mmap.Handle
	}

	regs pins
	cfg  config

	err  error
	xbuf [4]byte
}

// NewDevice acquires the trace peripherals through devmem and binds the
// trace register set. Ownership is a take-once resource: at most one
// device may be created per process lifetime, further calls fail with
// ErrTaken.
//
// The core clock frequency option is mandatory: the TPIU clock divisor
// is derived from it and a zero clock yields a meaningless divisor.
func NewDevice(devmem string, opts ...Option) (*Device, error) {
	if !atomic.CompareAndSwapUint32(&taken, 0, 1) {
		return nil, ErrTaken
	}

	dev := &Device{
		msg: log.New(os.Stdout, "itm: ", 0),
		cfg: newConfig(),
	}
	for _, opt := range opts {
		opt(&dev.cfg)
	}
	if dev.cfg.msg != nil {
		dev.msg = dev.cfg.msg
	}

	err := dev.cfg.valid()
	if err != nil {
		atomic.StoreUint32(&taken, 0)
		return nil, err
	}

	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		atomic.StoreUint32(&taken, 0)
		return nil, fmt.Errorf("itm: could not open %q: %w", devmem, err)
	}
	dev.mem.fd = mem

	ppb, err := mmap.Map(mem, regs.PPB_BASE, regs.PPB_SPAN)
	if err != nil {
		_ = mem.Close()
		atomic.StoreUint32(&taken, 0)
		return nil, fmt.Errorf("itm: could not map private peripheral bus: %w", err)
	}
	dev.mem.ppb = ppb

	dev.bind(ppb)
	return dev, nil
}

// Configure applies opts to the device configuration. It does not
// touch the hardware: a following Bringup programs the new setup.
func (dev *Device) Configure(opts ...Option) error {
	cfg := dev.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	err := cfg.valid()
	if err != nil {
		return err
	}

	dev.cfg = cfg
	if cfg.msg != nil {
		dev.msg = cfg.msg
	}
	return nil
}

func (dev *Device) bind(ppb rwer) {
	dev.regs.demcr = newReg32(dev, ppb, regs.SCS_DEMCR)

	dev.regs.tpiu.lar = newReg32(dev, ppb, regs.TPIU_LAR)
	dev.regs.tpiu.cspsr = newReg32(dev, ppb, regs.TPIU_CSPSR)
	dev.regs.tpiu.acpr = newReg32(dev, ppb, regs.TPIU_ACPR)
	dev.regs.tpiu.sppr = newReg32(dev, ppb, regs.TPIU_SPPR)
	dev.regs.tpiu.ffcr = newReg32(dev, ppb, regs.TPIU_FFCR)

	dev.regs.dwt.lar = newReg32(dev, ppb, regs.DWT_LAR)
	dev.regs.dwt.ctrl = newReg32(dev, ppb, regs.DWT_CTRL)

	dev.regs.itm.lar = newReg32(dev, ppb, regs.ITM_LAR)
	dev.regs.itm.tpr = newReg32(dev, ppb, regs.ITM_TPR)
	dev.regs.itm.tcr = newReg32(dev, ppb, regs.ITM_TCR)
	dev.regs.itm.ter = newReg32(dev, ppb, regs.ITM_TER)
	dev.regs.itm.stim = newStimBank(dev, ppb, regs.ITM_STIM)

	dev.regs.dbgmcu.cr = newReg32(dev, ppb, regs.DBGMCU_CR)
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf(
			"itm: could not read register 0x%x: %w",
			regs.PPB_BASE+off, dev.err,
		)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.xbuf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(dev.xbuf[:4], v)
	_, dev.err = w.WriteAt(dev.xbuf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf(
			"itm: could not write register 0x%x: %w",
			regs.PPB_BASE+off, dev.err,
		)
		return
	}
}

// Close unmaps the trace register window. The process keeps ownership
// of the trace peripherals: a closed device cannot be re-created.
func (dev *Device) Close() error {
	if dev.mem.fd == nil {
		return nil
	}

	var (
		errPPB = dev.mem.ppb.Close()
		errMem = dev.mem.fd.Close()
	)

	dev.mem.fd = nil
	dev.mem.ppb = nil

	if errMem != nil {
		return fmt.Errorf("itm: could not close devmem file: %w", errMem)
	}

	if errPPB != nil {
		return fmt.Errorf("itm: could not unmap private peripheral bus: %w", errPPB)
	}

	return nil
}

// DumpRegisters dumps the trace configuration registers to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	fmt.Fprintf(w, "demcr=      0x%08x\n", dev.regs.demcr.r())

	fmt.Fprintf(w, "tpiu.cspsr= 0x%08x\n", dev.regs.tpiu.cspsr.r())
	fmt.Fprintf(w, "tpiu.acpr=  0x%08x\n", dev.regs.tpiu.acpr.r())
	fmt.Fprintf(w, "tpiu.sppr=  0x%08x\n", dev.regs.tpiu.sppr.r())
	fmt.Fprintf(w, "tpiu.ffcr=  0x%08x\n", dev.regs.tpiu.ffcr.r())

	fmt.Fprintf(w, "dwt.ctrl=   0x%08x\n", dev.regs.dwt.ctrl.r())

	fmt.Fprintf(w, "itm.tpr=    0x%08x\n", dev.regs.itm.tpr.r())
	fmt.Fprintf(w, "itm.tcr=    0x%08x\n", dev.regs.itm.tcr.r())
	fmt.Fprintf(w, "itm.ter=    0x%08x\n", dev.regs.itm.ter.r())

	fmt.Fprintf(w, "dbgmcu.cr=  0x%08x\n", dev.regs.dbgmcu.cr.r())

	return dev.err
}
