// Copyright 2022 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package itm

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// device is the surface of Device the control server drives.
type device interface {
	Configure(opts ...Option) error
	Bringup() error
	Write(ch int, p []byte) error
	DumpRegisters(w io.Writer) error

	Close() error
}

var _ device = (*Device)(nil)

// server allows to control a trace device remotely.
type server struct {
	ctl net.Listener

	msg    *log.Logger
	devmem string

	newDevice func(devmem string, opts ...Option) (device, error)

	// mu serializes register traffic on dev between the command
	// handler and the stream goroutine.
	mu   sync.Mutex
	opts []Option
	dev  device
	ch   int

	stopc chan int // handler asks the stream goroutine to stop
	donec chan int // closed when the stream goroutine exits
}

// Serve runs a JSON control server for a trace device on addr.
func Serve(addr, devmem string, opts ...Option) error {
	srv, err := newServer(addr, devmem, opts...)
	if err != nil {
		return fmt.Errorf("itm: could not create control server: %w", err)
	}
	return srv.serve()
}

func newServer(addr, devmem string, opts ...Option) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("itm: could not listen on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,

		msg:    log.New(os.Stdout, "swo-svc: ", 0),
		devmem: devmem,

		newDevice: func(devmem string, opts ...Option) (device, error) {
			return NewDevice(devmem, opts...)
		},

		opts: opts,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			return fmt.Errorf("itm: could not accept connection: %w", err)
		}

		err = srv.handle(conn)
		if err != nil {
			srv.msg.Printf("could not run trace device: %+v", err)
			continue
		}
	}
}

func (srv *server) handle(conn net.Conn) error {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

loop:
	for {
		var req struct {
			Name string           `json:"name"`
			Args *json.RawMessage `json:"args"`
		}

		err := json.NewDecoder(conn).Decode(&req)
		if err != nil {
			srv.msg.Printf("could not decode command request: %+v", err)
			srv.reply(conn, err)
			if errors.Is(err, io.EOF) {
				break loop
			}
			continue
		}
		srv.msg.Printf("received request: name=%q", req.Name)

		switch strings.ToLower(req.Name) {
		case "configure":
			var args struct {
				Clock   uint32 `json:"clock"`
				Baud    uint32 `json:"baud"`
				Channel int    `json:"channel"`
			}
			if req.Args != nil {
				err = json.Unmarshal(*req.Args, &args)
				if err != nil {
					srv.msg.Printf("could not decode %q payload: %+v", req.Name, err)
					srv.reply(conn, err)
					continue
				}
			}

			if srv.streaming() {
				err = fmt.Errorf("itm: stream running")
				srv.reply(conn, err)
				continue
			}

			opts := srv.opts
			if args.Clock != 0 {
				opts = append(opts[:len(opts):len(opts)], WithClockFrequency(args.Clock))
			}
			if args.Baud != 0 {
				opts = append(opts[:len(opts):len(opts)], WithBaud(args.Baud))
			}
			opts = append(opts[:len(opts):len(opts)], WithChannel(args.Channel))

			switch srv.dev {
			case nil:
				dev, err := srv.newDevice(srv.devmem, opts...)
				if err != nil {
					srv.msg.Printf("could not create trace device: %+v", err)
					srv.reply(conn, err)
					continue
				}
				srv.dev = dev
			default:
				err = srv.dev.Configure(opts...)
				if err != nil {
					srv.msg.Printf("could not reconfigure trace device: %+v", err)
					srv.reply(conn, err)
					continue
				}
			}
			srv.ch = args.Channel

			srv.mu.Lock()
			err = srv.dev.Bringup()
			srv.mu.Unlock()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not bring up trace subsystem: %+v", err)
				continue
			}

		case "start":
			if srv.dev == nil {
				err = fmt.Errorf("itm: device not configured")
				srv.reply(conn, err)
				continue
			}
			if srv.streaming() {
				err = fmt.Errorf("itm: stream already started")
				srv.reply(conn, err)
				continue
			}
			srv.stopc = make(chan int)
			srv.donec = make(chan int)
			go srv.stream()
			srv.reply(conn, nil)

		case "stop":
			err = srv.stopStream()
			srv.reply(conn, err)
			if err != nil {
				srv.msg.Printf("could not stop stream: %+v", err)
				return fmt.Errorf("itm: could not stop stream: %w", err)
			}
			break loop

		case "status":
			if srv.dev == nil {
				srv.reply(conn, fmt.Errorf("itm: device not configured"))
				continue
			}
			o := new(strings.Builder)
			srv.mu.Lock()
			err = srv.dev.DumpRegisters(o)
			srv.mu.Unlock()
			if err != nil {
				srv.reply(conn, err)
				continue
			}
			_ = json.NewEncoder(conn).Encode(struct {
				Msg string `json:"msg"`
			}{o.String()})

		default:
			srv.msg.Printf("unknown command name=%q", req.Name)
			err = fmt.Errorf("unknown command %q", req.Name)
			srv.reply(conn, err)
			continue
		}
	}

	return nil
}

// stream is the RUN loop: the fixed 4+4 repeated-byte payload with an
// 8-bit wrapping counter, pushed as fast as the stimulus FIFO drains.
func (srv *server) stream() {
	defer close(srv.donec)

	b := uint8(0x80)
	for {
		select {
		case <-srv.stopc:
			return
		default:
		}

		buf := [4]byte{b, b, b, b}
		srv.mu.Lock()
		err := srv.dev.Write(srv.ch, buf[:])
		if err == nil {
			err = srv.dev.Write(srv.ch, buf[:])
		}
		srv.mu.Unlock()
		if err != nil {
			srv.msg.Printf("could not stream payload: %+v", err)
			return
		}
		b++
	}
}

// streaming reports whether a stream goroutine is live. Bookkeeping of
// a stream that exited on a write error is cleared along the way, so a
// failed stream can be restarted.
func (srv *server) streaming() bool {
	if srv.stopc == nil {
		return false
	}
	select {
	case <-srv.donec:
		srv.stopc = nil
		srv.donec = nil
		return false
	default:
		return true
	}
}

func (srv *server) stopStream() error {
	if srv.stopc == nil {
		return fmt.Errorf("itm: stream not started")
	}

	const timeout = 10 * time.Second
	tck := time.NewTimer(timeout)
	defer tck.Stop()

	select {
	case srv.stopc <- 1:
		<-srv.donec
	case <-srv.donec:
		// stream already exited on a write error.
	case <-tck.C:
		return fmt.Errorf("itm: could not stop stream (timeout=%v)", timeout)
	}
	srv.stopc = nil
	srv.donec = nil
	return nil
}

func (srv *server) reply(conn net.Conn, err error) {
	rep := struct {
		Msg string `json:"msg"`
	}{"ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}

	_ = json.NewEncoder(conn).Encode(rep)
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}
