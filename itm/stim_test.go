// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWritePacking(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 7, 8, 9, 16} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			bus := newFakeBus()
			dev := newTestDevice(bus, WithClockFrequency(8000000))

			p := make([]byte, n)
			for i := range p {
				p[i] = byte(i + 1)
			}

			err := dev.Write(0, p)
			if err != nil {
				t.Fatalf("could not write payload: %+v", err)
			}

			if got, want := len(bus.words), (n+3)/4; got != want {
				t.Fatalf("invalid number of words: got=%d, want=%d", got, want)
			}

			// round-trip: input bytes in order, final word zero-padded.
			buf := make([]byte, 4*len(bus.words))
			for i, w := range bus.words {
				binary.LittleEndian.PutUint32(buf[4*i:], w)
			}
			want := make([]byte, len(buf))
			copy(want, p)
			if !bytes.Equal(buf, want) {
				t.Fatalf("invalid packing:\ngot= %v\nwant=%v", buf, want)
			}
		})
	}
}

func TestWriteWordOrder(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(8000000))

	err := dev.Write(0, []byte{0x01, 0x02, 0x03, 0x04, 0x80})
	if err != nil {
		t.Fatalf("could not write payload: %+v", err)
	}

	want := []uint32{0x04030201, 0x00000080}
	if diff := cmp.Diff(want, bus.words); diff != "" {
		t.Fatalf("invalid words: (-want +got)\n%s", diff)
	}
}

func TestWriteBackpressure(t *testing.T) {
	for _, busy := range []int{0, 1, 3, 16} {
		t.Run(fmt.Sprintf("busy=%d", busy), func(t *testing.T) {
			bus := newFakeBus()
			bus.busy = busy
			dev := newTestDevice(bus, WithClockFrequency(8000000))

			err := dev.Write(0, []byte{1, 2, 3, 4})
			if err != nil {
				t.Fatalf("could not write payload: %+v", err)
			}

			// busy not-ready polls, then the one that reads ready.
			if got, want := bus.polls, busy+1; got != want {
				t.Fatalf("invalid number of polls: got=%d, want=%d", got, want)
			}
			if got, want := len(bus.words), 1; got != want {
				t.Fatalf("invalid number of words: got=%d, want=%d", got, want)
			}
		})
	}
}

func TestWriteInvalidChannel(t *testing.T) {
	dev := newTestDevice(newFakeBus(), WithClockFrequency(8000000))

	for _, ch := range []int{-1, 32, 42} {
		t.Run(fmt.Sprintf("ch=%d", ch), func(t *testing.T) {
			err := dev.Write(ch, []byte{1})
			if err == nil {
				t.Fatalf("expected an error")
			}
			if got, want := err.Error(), fmt.Sprintf("itm: invalid stimulus channel %d", ch); got != want {
				t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestWriteBusError(t *testing.T) {
	dev := newTestDevice(failBus{}, WithClockFrequency(8000000))

	err := dev.Write(0, []byte{1, 2, 3, 4})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(),
		"itm: could not push stimulus word (chan=0): "+
			"itm: could not read register 0xe0000000: bus gone"; got != want {
		t.Fatalf("invalid error:\ngot= %q\nwant=%q", got, want)
	}
}

func TestWriter(t *testing.T) {
	bus := newFakeBus()
	dev := newTestDevice(bus, WithClockFrequency(8000000))

	w := dev.Writer(1)
	n, err := w.Write([]byte{0xde, 0xad, 0xbe, 0xef, 0x01})
	if err != nil {
		t.Fatalf("could not write payload: %+v", err)
	}
	if got, want := n, 5; got != want {
		t.Fatalf("invalid write length: got=%d, want=%d", got, want)
	}

	want := []uint32{0xefbeadde, 0x00000001}
	if diff := cmp.Diff(want, bus.words); diff != "" {
		t.Fatalf("invalid words: (-want +got)\n%s", diff)
	}

	n, err = io.WriteString(w, "")
	if err != nil {
		t.Fatalf("could not write empty payload: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid write length: got=%d, want=0", n)
	}
}

type failBus struct{}

func (failBus) ReadAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("bus gone")
}

func (failBus) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("bus gone")
}
