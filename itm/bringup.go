// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"fmt"

	"github.com/go-lpc/swo/itm/internal/regs"
)

// swoDivisor derives the TPIU clock prescaler from the core clock
// frequency. The division is exact for clock > baud with clock a
// multiple of baud; a clock at or below the baud rate is a caller
// error and yields an unusable divisor.
func swoDivisor(clock, baud uint32) uint32 {
	return clock/baud - 1
}

// Bringup programs the trace subsystem for 1-bit asynchronous SWO
// output in Manchester coding, with the DWT as sync source and user
// access to the first 8 ITM stimulus ports, and enables exactly the
// configured stimulus channel.
//
// The sequence order is mandatory: tracing must be enabled in DEMCR
// before the trace-unit registers become writable on some silicon
// revisions, and each block must be unlocked through its LAR before
// it is configured. A locked block silently ignores writes; there is
// no readback contract to verify against.
//
// Bringup is idempotent. Re-invoking it with the same clock leaves
// the register set unchanged.
func (dev *Device) Bringup() error {
	demcr := dev.regs.demcr.r()
	dev.regs.demcr.w(demcr | regs.SCS_DEMCR_TRCENA)
	if dev.err != nil {
		return fmt.Errorf("itm: could not enable tracing in DEMCR: %w", dev.err)
	}

	err := dev.tpiuConfigure()
	if err != nil {
		return err
	}

	err = dev.dwtEnableSync()
	if err != nil {
		return err
	}

	err = dev.itmEnable()
	if err != nil {
		return err
	}

	err = dev.dbgmcuRouteSWO()
	if err != nil {
		return err
	}

	return nil
}

// tpiuConfigure sets the TPIU up for 1-bit async trace at the
// configured byte rate, with formatter framing off (raw byte export).
func (dev *Device) tpiuConfigure() error {
	dev.regs.tpiu.lar.w(regs.LAR_UNLOCK_KEY)
	dev.regs.tpiu.cspsr.w(regs.TPIU_CSPSR_1BIT)
	dev.regs.tpiu.acpr.w(swoDivisor(dev.cfg.clock, dev.cfg.baud))
	dev.regs.tpiu.sppr.w(regs.TPIU_SPPR_ASYNC_MANCHESTER)

	ffcr := dev.regs.tpiu.ffcr.r()
	dev.regs.tpiu.ffcr.w(ffcr &^ regs.TPIU_FFCR_ENFCONT)

	if dev.err != nil {
		return fmt.Errorf("itm: could not configure TPIU: %w", dev.err)
	}
	return nil
}

// dwtEnableSync turns on the DWT counters that generate the periodic
// synchronization packets downstream decoders need for bit alignment.
func (dev *Device) dwtEnableSync() error {
	dev.regs.dwt.lar.w(regs.LAR_UNLOCK_KEY)

	ctrl := dev.regs.dwt.ctrl.r()
	dev.regs.dwt.ctrl.w(ctrl | regs.DWT_CTRL_SYNC)

	if dev.err != nil {
		return fmt.Errorf("itm: could not configure DWT sync source: %w", dev.err)
	}
	return nil
}

func (dev *Device) itmEnable() error {
	dev.regs.itm.lar.w(regs.LAR_UNLOCK_KEY)
	dev.regs.itm.tpr.w(regs.ITM_TPR_USER8)
	dev.regs.itm.tcr.w(
		regs.ITM_TCR_ITMENA |
			regs.ITM_TCR_SYNCENA |
			regs.ITM_TCR_TXENA |
			regs.ITM_TCR_SWOENA |
			regs.ITM_TCR_TSPRESCALE,
	)
	dev.regs.itm.ter.w(1 << uint(dev.cfg.ch))

	if dev.err != nil {
		return fmt.Errorf("itm: could not enable ITM: %w", dev.err)
	}
	return nil
}

// dbgmcuRouteSWO clears the previous trace-output routing and maps the
// trace pins as asynchronous SWO.
func (dev *Device) dbgmcuRouteSWO() error {
	cr := dev.regs.dbgmcu.cr.r()
	dev.regs.dbgmcu.cr.w(cr &^ regs.DBGMCU_CR_TRACE_MODE_MASK)

	cr = dev.regs.dbgmcu.cr.r()
	dev.regs.dbgmcu.cr.w(cr | regs.DBGMCU_CR_TRACE_IOEN | regs.DBGMCU_CR_TRACE_MODE_ASYNC)

	if dev.err != nil {
		return fmt.Errorf("itm: could not route trace output to SWO: %w", dev.err)
	}
	return nil
}
