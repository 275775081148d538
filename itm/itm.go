// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package itm drives the instrumentation trace macrocell of a Cortex-M
// target: it brings the TPIU+DWT+ITM trace subsystem into a known state
// and pushes diagnostic bytes through a stimulus channel over SWO.
package itm // import "github.com/go-lpc/swo/itm"

// DefaultBaud is the SWO byte rate the TPIU clock divisor is derived
// for, unless overridden with WithBaud.
const DefaultBaud = 1000000
