// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/go-lpc/swo/itm/internal/regs"
)

func TestStandaloneStream(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(8000000))

	srv := &standalone{
		dev:  dev,
		stop: make(chan os.Signal, 1),
	}
	srv.stop <- syscall.SIGUSR1

	err := srv.stream()
	if err != nil {
		t.Fatalf("could not run stream: %+v", err)
	}

	// bring-up ran before the stop was honored.
	if got := bus.mem[regs.SCS_DEMCR] & regs.SCS_DEMCR_TRCENA; got == 0 {
		t.Fatalf("tracing not enabled in demcr")
	}
	if got, want := bus.mem[regs.TPIU_ACPR], uint32(7); got != want {
		t.Fatalf("invalid tpiu.acpr: got=%d, want=%d", got, want)
	}
	if len(bus.words) != 0 {
		t.Fatalf("stream pushed %d words after stop", len(bus.words))
	}
}

func TestStandaloneStreamBringupError(t *testing.T) {
	dev := newTestDevice(failBus{}, WithClockFrequency(8000000))

	srv := &standalone{
		dev:  dev,
		stop: make(chan os.Signal, 1),
	}

	err := srv.stream()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !strings.Contains(err.Error(), "could not bring up trace subsystem") {
		t.Fatalf("invalid error: %+v", err)
	}
}
