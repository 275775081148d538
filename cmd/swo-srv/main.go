// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command swo-srv starts a TDAQ server on a trace board, exposing the
// SWO diagnostic stream to a TDAQ run control.
package main // import "github.com/go-lpc/swo/cmd/swo-srv"

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-lpc/swo/itm"
)

func main() {
	cmd := flags.New()

	srv := board{
		devmem: "/dev/mem",
		clock:  72000000,
	}
	if len(cmd.Args) > 0 {
		srv.devmem = cmd.Args[0]
	}
	if len(cmd.Args) > 1 {
		clk, err := strconv.ParseUint(cmd.Args[1], 10, 32)
		if err != nil {
			log.Panicf("invalid clock frequency %q: %+v", cmd.Args[1], err)
		}
		srv.clock = uint32(clk)
	}

	app := tdaq.New(cmd, os.Stdout)
	app.CmdHandle("/config", srv.OnConfig)
	app.CmdHandle("/init", srv.OnInit)
	app.CmdHandle("/reset", srv.OnReset)
	app.CmdHandle("/start", srv.OnStart)
	app.CmdHandle("/stop", srv.OnStop)
	app.CmdHandle("/quit", srv.OnQuit)

	app.OutputHandle("/swo", srv.swo)

	app.RunHandle(srv.run)

	err := app.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type board struct {
	devmem string
	clock  uint32
	ch     int

	dev *itm.Device

	n    int
	data chan []byte
}

func (srv *board) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if srv.dev == nil {
		dev, err := itm.NewDevice(srv.devmem,
			itm.WithClockFrequency(srv.clock),
			itm.WithChannel(srv.ch),
		)
		if err != nil {
			return fmt.Errorf("could not create trace device: %w", err)
		}
		srv.dev = dev
	}

	err := srv.dev.Bringup()
	if err != nil {
		return fmt.Errorf("could not bring up trace subsystem: %w", err)
	}
	return nil
}

func (srv *board) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.data = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *board) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.data = make(chan []byte, 1024)
	srv.n = 0
	return nil
}

func (srv *board) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *board) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := srv.n
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return nil
}

func (srv *board) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if srv.dev == nil {
		return nil
	}
	err := srv.dev.Close()
	if err != nil {
		return fmt.Errorf("could not close trace device: %w", err)
	}
	return nil
}

func (srv *board) swo(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// run pushes the fixed diagnostic payload down the stimulus channel
// and mirrors it on the /swo output stream: one counter byte repeated
// four times, pushed twice, counter wrapping at 8 bits.
func (srv *board) run(ctx tdaq.Context) error {
	if srv.dev == nil {
		return fmt.Errorf("trace device not configured")
	}

	b := uint8(0x80)
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			buf := [4]byte{b, b, b, b}
			err := srv.dev.Write(srv.ch, buf[:])
			if err == nil {
				err = srv.dev.Write(srv.ch, buf[:])
			}
			if err != nil {
				return fmt.Errorf("could not stream payload: %w", err)
			}

			raw := []byte{b, b, b, b, b, b, b, b}
			select {
			case srv.data <- raw:
				srv.n++
			default:
			}
			b++
		}
	}
}
