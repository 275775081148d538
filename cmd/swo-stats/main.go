// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command swo-stats computes the byte-value distribution of a raw SWO
// capture file and saves it as a YODA histogram.
package main // import "github.com/go-lpc/swo/cmd/swo-stats"

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go-hep.org/x/hep/hbook"
)

func main() {
	log.SetPrefix("swo-stats: ")
	log.SetFlags(0)

	var (
		oname = flag.String("o", "swo-stats.yoda", "path to output YODA file")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: swo-stats [OPTIONS] file.raw

ex:
 $> swo-stats -o out.yoda ./swo_capture.raw

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input raw capture file")
	}

	if *oname == "" {
		flag.Usage()
		log.Fatalf("invalid output YODA file name")
	}

	err := process(*oname, flag.Arg(0))
	if err != nil {
		log.Fatalf("could not analyze capture file: %+v", err)
	}
}

func process(oname, fname string) error {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("could not read %q: %w", fname, err)
	}

	h := hbook.NewH1D(256, 0, 256)
	for _, b := range raw {
		h.Fill(float64(b), 1)
	}

	log.Printf("input:   %s", fname)
	log.Printf("bytes:   %d", len(raw))
	log.Printf("mean:    %v", h.XMean())
	log.Printf("rms:     %v", h.XRMS())

	out, err := h.MarshalYODA()
	if err != nil {
		return fmt.Errorf("could not marshal histogram to YODA: %w", err)
	}

	err = os.WriteFile(oname, out, 0644)
	if err != nil {
		return fmt.Errorf("could not write %q: %w", oname, err)
	}

	return nil
}
