// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"log"

	"github.com/go-lpc/swo/itm"
)

func main() {
	var (
		addr = flag.String("addr", ":9999", "swo-svc [addr]:port")

		devmem = flag.String("dev-mem", "/dev/mem", "")
	)

	log.SetPrefix("swo-svc: ")
	log.SetFlags(0)

	flag.Parse()

	err := itm.Serve(*addr, *devmem)
	if err != nil {
		log.Fatalf("could not create swo-svc service: %+v", err)
	}
}
