// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command swo-daq brings the trace subsystem of a Cortex-M board up and
// streams the diagnostic payload on a stimulus channel, forever.
package main // import "github.com/go-lpc/swo/cmd/swo-daq"

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/go-lpc/swo/conddb"
	"github.com/go-lpc/swo/itm"
)

func main() {
	var (
		dev  = flag.String("dev", "/dev/mem", "devmem file to access the trace registers")
		clk  = flag.Uint("clk", 0, "core clock frequency (Hz)")
		baud = flag.Uint("baud", itm.DefaultBaud, "SWO byte rate (Hz)")
		ch   = flag.Int("ch", 0, "stimulus channel to stream on")
		rate = flag.Duration("rate", 0, "stream pacing (0: as fast as the FIFO drains)")

		dbname = flag.String("db", "", "name of the trace-bench database to fetch the board configuration from")
		board  = flag.Uint("board", 0, "board identifier in the trace-bench database")
	)

	flag.Parse()

	log.SetPrefix("swo-daq: ")
	log.SetFlags(0)

	cfg := config{
		clock: uint32(*clk),
		baud:  uint32(*baud),
		ch:    *ch,
	}

	if *dbname != "" {
		var err error
		cfg, err = fetchConfig(*dbname, uint32(*board))
		if err != nil {
			log.Fatalf("could not fetch board configuration: %+v", err)
		}
		log.Printf(
			"board=%d: clock=%d Hz, baud=%d Hz, chan=%d",
			*board, cfg.clock, cfg.baud, cfg.ch,
		)
	}

	if cfg.clock == 0 {
		log.Fatalf("missing core clock frequency (-clk)")
	}

	err := itm.RunStandalone(*dev,
		itm.WithClockFrequency(cfg.clock),
		itm.WithBaud(cfg.baud),
		itm.WithChannel(cfg.ch),
		itm.WithRate(*rate),
	)
	if err != nil {
		log.Fatalf("could not run trace stream: %+v", err)
	}
}

type config struct {
	clock uint32
	baud  uint32
	ch    int
}

func fetchConfig(dbname string, board uint32) (config, error) {
	var cfg config

	db, err := conddb.Open(dbname)
	if err != nil {
		return cfg, err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if board == 0 {
		board, err = db.LastBoardID(ctx)
		if err != nil {
			return cfg, err
		}
	}

	tcfg, err := db.TraceConfig(ctx, board)
	if err != nil {
		return cfg, err
	}

	cfg.clock = tcfg.ClockHz
	cfg.baud = tcfg.SWOBaud
	cfg.ch = tcfg.Channel()
	if cfg.baud == 0 {
		cfg.baud = itm.DefaultBaud
	}
	return cfg, nil
}
