// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command swo-shell provides an interactive shell to drive the trace
// subsystem of a Cortex-M board.
package main // import "github.com/go-lpc/swo/cmd/swo-shell"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-lpc/swo/itm"
)

func main() {
	var (
		dev  = flag.String("dev", "/dev/mem", "devmem file to access the trace registers")
		clk  = flag.Uint("clk", 0, "core clock frequency (Hz)")
		baud = flag.Uint("baud", itm.DefaultBaud, "SWO byte rate (Hz)")
		ch   = flag.Int("ch", 0, "stimulus channel")
	)

	flag.Parse()

	log.SetPrefix("swo-shell: ")
	log.SetFlags(0)

	if *clk == 0 {
		log.Fatalf("missing core clock frequency (-clk)")
	}

	err := run(*dev, uint32(*clk), uint32(*baud), *ch)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(devmem string, clk, baud uint32, ch int) error {
	dev, err := itm.NewDevice(devmem,
		itm.WithClockFrequency(clk),
		itm.WithBaud(baud),
		itm.WithChannel(ch),
	)
	if err != nil {
		return fmt.Errorf("could not create trace device: %w", err)
	}
	defer dev.Close()

	sh := shell{dev: dev, ch: ch}

	rl := liner.NewLiner()
	defer rl.Close()

	rl.SetCtrlCAborts(true)

	for {
		o, err := rl.Prompt("swo> ")
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			break
		}
		if o == "" {
			continue
		}
		rl.AppendHistory(o)

		quit, err := sh.exec(o)
		if err != nil {
			log.Printf("%+v", err)
			continue
		}
		if quit {
			break
		}
	}

	return nil
}

type shell struct {
	dev *itm.Device
	ch  int
}

func (sh *shell) exec(line string) (bool, error) {
	args := strings.Fields(line)
	switch args[0] {
	case "bringup":
		err := sh.dev.Bringup()
		if err != nil {
			return false, fmt.Errorf("could not bring up trace subsystem: %w", err)
		}

	case "dump":
		err := sh.dev.DumpRegisters(os.Stdout)
		if err != nil {
			return false, fmt.Errorf("could not dump registers: %w", err)
		}

	case "send":
		if len(args) < 2 {
			return false, fmt.Errorf("missing bytes to send (ex: send 0x80 0x81)")
		}
		buf := make([]byte, 0, len(args)-1)
		for _, arg := range args[1:] {
			v, err := strconv.ParseUint(arg, 0, 8)
			if err != nil {
				return false, fmt.Errorf("invalid byte %q: %w", arg, err)
			}
			buf = append(buf, byte(v))
		}
		err := sh.dev.Write(sh.ch, buf)
		if err != nil {
			return false, fmt.Errorf("could not push payload: %w", err)
		}

	case "help":
		fmt.Printf(`commands:
 bringup          program the trace subsystem for SWO output
 dump             dump the trace configuration registers
 send B [B...]    push bytes down the stimulus channel
 quit             exit the shell
`)

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", args[0])
	}
	return false, nil
}
