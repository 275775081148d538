// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command swo-spy spies the content of the trace configuration registers.
package main // import "github.com/go-lpc/swo/cmd/swo-spy"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-lpc/swo/itm"
)

func main() {
	var (
		devmem = flag.String("dev", "/dev/mem", "devmem file to access the trace registers")
		clk    = flag.Uint("clk", 72000000, "core clock frequency (Hz)")
	)

	flag.Parse()

	log.SetPrefix("swo-spy: ")
	log.SetFlags(0)

	dev, err := itm.NewDevice(*devmem, itm.WithClockFrequency(uint32(*clk)))
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	fmt.Printf("------------------------------------------------\n")
	const layout = "2006-01-02 15:04:05 MST"
	fmt.Printf("%v\n", time.Now().Format(layout))

	err = dev.DumpRegisters(os.Stdout)
	if err != nil {
		log.Fatalf("could not dump registers: %+v", err)
	}
}
