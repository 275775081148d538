// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type standalone struct {
	dev  *Device
	stop chan os.Signal
}

// RunStandalone acquires the trace peripherals through devmem, brings
// the trace subsystem up once and then streams the fixed diagnostic
// payload on the configured stimulus channel, forever. Each iteration
// pushes one counter byte repeated four times, twice, then advances
// the 8-bit counter with wraparound.
//
// The stream has no termination condition of its own: it runs until
// the process receives SIGINT or SIGUSR1, which stands in for an
// external reset.
func RunStandalone(devmem string, opts ...Option) error {
	dev, err := NewDevice(devmem, opts...)
	if err != nil {
		return fmt.Errorf("itm: could not create trace device: %w", err)
	}
	srv := &standalone{
		dev:  dev,
		stop: make(chan os.Signal, 1),
	}
	return srv.stream()
}

func (srv *standalone) stream() error {
	dev := srv.dev
	defer dev.Close()

	signal.Notify(srv.stop, os.Interrupt, syscall.SIGUSR1)
	defer signal.Stop(srv.stop)

	err := dev.Bringup()
	if err != nil {
		return fmt.Errorf("itm: could not bring up trace subsystem: %w", err)
	}

	dev.msg.Printf(
		"swo ready: clock=%d Hz, baud=%d Hz, divisor=%d, chan=%d",
		dev.cfg.clock, dev.cfg.baud,
		swoDivisor(dev.cfg.clock, dev.cfg.baud),
		dev.cfg.ch,
	)

	var tick *time.Ticker
	if dev.cfg.rate > 0 {
		tick = time.NewTicker(dev.cfg.rate)
		defer tick.Stop()
	}

	b := uint8(0x80)
	for {
		select {
		case <-srv.stop:
			dev.msg.Printf("stopping stream...")
			return nil
		default:
		}

		buf := [4]byte{b, b, b, b}
		err = dev.Write(dev.cfg.ch, buf[:])
		if err != nil {
			return fmt.Errorf("itm: could not stream payload: %w", err)
		}
		err = dev.Write(dev.cfg.ch, buf[:])
		if err != nil {
			return fmt.Errorf("itm: could not stream payload: %w", err)
		}
		b++ // wraps to 0 past 0xff

		if tick != nil {
			<-tick.C
		}
	}
}
