// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the Cortex-M trace subsystem
// (DEMCR, TPIU, DWT, ITM) and of the STM32F1 DBGMCU trace-routing block.
//
// Addresses are absolute bus addresses; they live inside the private
// peripheral bus window described by PPB_BASE/PPB_SPAN.
package regs // import "github.com/go-lpc/swo/itm/internal/regs"

// Private peripheral bus window.
const (
	PPB_BASE = 0xe0000000
	PPB_SPAN = 0x00100000
)

// LAR_UNLOCK_KEY is the CoreSight lock-access key, common to the TPIU,
// DWT and ITM blocks. Writing any other value to a block's LAR leaves
// its control registers read-only.
const LAR_UNLOCK_KEY = 0xc5acce55

// Debug exception and monitor control register.
const (
	SCS_DEMCR        = 0xe000edfc
	SCS_DEMCR_TRCENA = 1 << 24 // global trace enable
)

// Trace port interface unit.
const (
	TPIU_LAR   = 0xe0040fb0
	TPIU_CSPSR = 0xe0040004 // current parallel port size
	TPIU_ACPR  = 0xe0040010 // asynchronous clock prescaler
	TPIU_SPPR  = 0xe00400f0 // selected pin protocol
	TPIU_FFCR  = 0xe0040304 // formatter and flush control

	TPIU_CSPSR_1BIT = 0x1

	TPIU_SPPR_ASYNC_MANCHESTER = 1
	TPIU_SPPR_ASYNC_NRZ        = 2

	TPIU_FFCR_ENFCONT = 1 << 1 // continuous formatting
)

// Data watchpoint and trace unit.
const (
	DWT_LAR  = 0xe0001fb0
	DWT_CTRL = 0xe0001000

	// DWT_CTRL_SYNC enables the exception/sync/fold/CPI/sleep/LSU
	// counters and the synchronization packet taps feeding the ITM.
	DWT_CTRL_SYNC = 0x000003fe
)

// Instrumentation trace macrocell.
const (
	ITM_LAR  = 0xe0000fb0
	ITM_TPR  = 0xe0000e40 // trace privilege
	ITM_TCR  = 0xe0000e80 // trace control
	ITM_TER  = 0xe0000e00 // trace enable, one bit per stimulus port
	ITM_STIM = 0xe0000000 // stimulus port n at ITM_STIM + 4*n

	NumStim = 32

	ITM_TPR_USER8 = 0x0000000f // user-level access to ports 0-7

	ITM_TCR_ITMENA     = 1 << 0
	ITM_TCR_TSENA      = 1 << 1
	ITM_TCR_SYNCENA    = 1 << 2
	ITM_TCR_TXENA      = 1 << 3
	ITM_TCR_SWOENA     = 1 << 4
	ITM_TCR_TSPRESCALE = 1 << 16 // timestamp prescaler field

	ITM_STIM_FIFOREADY = 1 << 0
)

// STM32F1 MCU debug component.
const (
	DBGMCU_CR = 0xe0042004

	DBGMCU_CR_TRACE_IOEN       = 0x00000020
	DBGMCU_CR_TRACE_MODE_MASK  = 0x000000c0
	DBGMCU_CR_TRACE_MODE_ASYNC = 0x00000000
)
