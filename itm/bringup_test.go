// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-lpc/swo/itm/internal/regs"
)

func TestSWODivisor(t *testing.T) {
	for _, tc := range []struct {
		clock uint32
		baud  uint32
		want  uint32
	}{
		{clock: 1000000, baud: 1000000, want: 0},
		{clock: 2000000, baud: 1000000, want: 1},
		{clock: 8000000, baud: 1000000, want: 7},
		{clock: 16000000, baud: 1000000, want: 15},
		{clock: 72000000, baud: 1000000, want: 71},
		{clock: 72000000, baud: 2000000, want: 35},
		{clock: 168000000, baud: 1000000, want: 167},
	} {
		t.Run(fmt.Sprintf("clk=%d-baud=%d", tc.clock, tc.baud), func(t *testing.T) {
			got := swoDivisor(tc.clock, tc.baud)
			if got != tc.want {
				t.Fatalf("invalid divisor: got=%d, want=%d", got, tc.want)
			}
			// exactness: the divided clock gives back the byte rate.
			if rate := tc.clock / (got + 1); rate != tc.baud {
				t.Fatalf("divisor not exact: clock/%d=%d, want %d", got+1, rate, tc.baud)
			}
		})
	}
}

func TestBringup(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(8000000))

	err := dev.Bringup()
	if err != nil {
		t.Fatalf("could not bring up trace subsystem: %+v", err)
	}

	for _, tc := range []struct {
		name string
		addr int64
		want uint32
	}{
		{"demcr", regs.SCS_DEMCR, regs.SCS_DEMCR_TRCENA},
		{"tpiu.cspsr", regs.TPIU_CSPSR, regs.TPIU_CSPSR_1BIT},
		{"tpiu.acpr", regs.TPIU_ACPR, 7},
		{"tpiu.sppr", regs.TPIU_SPPR, regs.TPIU_SPPR_ASYNC_MANCHESTER},
		{"tpiu.ffcr", regs.TPIU_FFCR, 0x100}, // continuous formatting off
		{"dwt.ctrl", regs.DWT_CTRL, regs.DWT_CTRL_SYNC},
		{"itm.tpr", regs.ITM_TPR, regs.ITM_TPR_USER8},
		{"itm.tcr", regs.ITM_TCR, 0x1001d},
		{"itm.ter", regs.ITM_TER, 1},
		{"dbgmcu.cr", regs.DBGMCU_CR, regs.DBGMCU_CR_TRACE_IOEN},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := bus.mem[tc.addr], tc.want; got != want {
				t.Fatalf("invalid %s: got=0x%08x, want=0x%08x", tc.name, got, want)
			}
		})
	}

	if got := bus.mem[regs.DBGMCU_CR] & regs.DBGMCU_CR_TRACE_MODE_MASK; got != regs.DBGMCU_CR_TRACE_MODE_ASYNC {
		t.Fatalf("invalid trace mode: got=0x%x, want async (0x%x)",
			got, uint32(regs.DBGMCU_CR_TRACE_MODE_ASYNC),
		)
	}
}

func TestBringupChannel(t *testing.T) {
	for _, ch := range []int{0, 1, 7, 31} {
		t.Run(fmt.Sprintf("ch=%d", ch), func(t *testing.T) {
			bus := newFakeBus()
			dev := newTestDevice(bus,
				WithClockFrequency(8000000),
				WithChannel(ch),
			)

			err := dev.Bringup()
			if err != nil {
				t.Fatalf("could not bring up trace subsystem: %+v", err)
			}

			if got, want := bus.mem[regs.ITM_TER], uint32(1)<<uint(ch); got != want {
				t.Fatalf("invalid itm.ter: got=0x%08x, want=0x%08x", got, want)
			}
		})
	}
}

func TestBringupIdempotent(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(72000000))

	err := dev.Bringup()
	if err != nil {
		t.Fatalf("could not bring up trace subsystem: %+v", err)
	}
	want := bus.snapshot()

	err = dev.Bringup()
	if err != nil {
		t.Fatalf("could not re-run bring-up: %+v", err)
	}

	if diff := cmp.Diff(want, bus.snapshot()); diff != "" {
		t.Fatalf("bring-up not idempotent: (-first +second)\n%s", diff)
	}
}

func TestBringupLockedBlock(t *testing.T) {
	for _, tc := range []struct {
		block string
		addrs []int64
	}{
		{
			block: "tpiu",
			addrs: []int64{regs.TPIU_CSPSR, regs.TPIU_ACPR, regs.TPIU_SPPR, regs.TPIU_FFCR},
		},
		{
			block: "dwt",
			addrs: []int64{regs.DWT_CTRL},
		},
		{
			block: "itm",
			addrs: []int64{regs.ITM_TPR, regs.ITM_TCR, regs.ITM_TER},
		},
	} {
		t.Run(tc.block, func(t *testing.T) {
			bus := newFakeBus()
			bus.jammed[tc.block] = true
			init := bus.snapshot()

			dev := newTestDevice(bus, WithClockFrequency(8000000))
			err := dev.Bringup()
			if err != nil {
				t.Fatalf("could not bring up trace subsystem: %+v", err)
			}

			for _, addr := range tc.addrs {
				if got, want := bus.mem[addr], init[addr]; got != want {
					t.Fatalf(
						"register 0x%08x written while block %q locked: got=0x%08x, want=0x%08x",
						addr, tc.block, got, want,
					)
				}
			}

			// unprotected registers are still programmed.
			if got := bus.mem[regs.SCS_DEMCR] & regs.SCS_DEMCR_TRCENA; got == 0 {
				t.Fatalf("tracing not enabled in demcr")
			}
			if got := bus.mem[regs.DBGMCU_CR] & regs.DBGMCU_CR_TRACE_IOEN; got == 0 {
				t.Fatalf("trace pins not routed in dbgmcu.cr")
			}
		})
	}
}

func TestDumpRegisters(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(8000000))

	err := dev.Bringup()
	if err != nil {
		t.Fatalf("could not bring up trace subsystem: %+v", err)
	}

	o := new(strings.Builder)
	err = dev.DumpRegisters(o)
	if err != nil {
		t.Fatalf("could not dump registers: %+v", err)
	}

	want := `demcr=      0x01000000
tpiu.cspsr= 0x00000001
tpiu.acpr=  0x00000007
tpiu.sppr=  0x00000001
tpiu.ffcr=  0x00000100
dwt.ctrl=   0x000003fe
itm.tpr=    0x0000000f
itm.tcr=    0x0001001d
itm.ter=    0x00000001
dbgmcu.cr=  0x00000020
`
	if got := o.String(); got != want {
		t.Fatalf("invalid register dump:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
