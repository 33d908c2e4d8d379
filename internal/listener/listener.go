// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package listener accepts connections with bounded admission control
// and exponential backoff on transient accept errors, spawning one
// handler goroutine per connection.
package listener

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/xtaci/kvresp/internal/handler"
	"github.com/xtaci/kvresp/internal/respconn"
	"github.com/xtaci/kvresp/internal/shutdown"
	"github.com/xtaci/kvresp/internal/store"
)

// Options configures a Listener's admission control.
type Options struct {
	// MaxConnections bounds how many accepted connections may be served
	// concurrently; further accepts block until one finishes.
	MaxConnections int

	// AcceptBackoffCeiling is the largest backoff slept between retries
	// on a transient Accept error. The listener gives up once the next
	// backoff would exceed this value.
	AcceptBackoffCeiling time.Duration
}

// DefaultOptions returns the options this server ships with: 250
// concurrent connections, backoff doubling from 1s up to a 64s ceiling.
func DefaultOptions() Options {
	return Options{MaxConnections: 250, AcceptBackoffCeiling: 64 * time.Second}
}

// Listener owns the network listener, the shared store, and the
// shutdown broadcaster for one server instance.
type Listener struct {
	ln    net.Listener
	store *store.Store
	sd    *shutdown.Broadcaster
	sem   chan struct{}
	opts  Options
}

// New builds a Listener. ln is assumed already bound and listening.
func New(ln net.Listener, st *store.Store, sd *shutdown.Broadcaster, opts Options) *Listener {
	return &Listener{
		ln:    ln,
		store: st,
		sd:    sd,
		sem:   make(chan struct{}, opts.MaxConnections),
		opts:  opts,
	}
}

// Run accepts connections until ctx is canceled or Accept fails past
// the backoff ceiling, then waits for every in-flight handler to drain
// before returning. A nil return means a clean, requested shutdown.
func (l *Listener) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		l.sd.Trigger()
		l.ln.Close()
	}()

	err := l.acceptLoop()
	if err != nil {
		l.sd.Trigger()
		l.ln.Close()
	}
	l.sd.Wait()
	return err
}

func (l *Listener) acceptLoop() error {
	backoff := time.Second
	for {
		l.sem <- struct{}{}

		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				<-l.sem
				return nil
			}
			if backoff > l.opts.AcceptBackoffCeiling {
				<-l.sem
				return errors.Wrap(err, "accept")
			}
			<-l.sem
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		backoff = time.Second

		sub := l.sd.Subscribe()
		go l.serve(conn, sub)
	}
}

func (l *Listener) serve(conn net.Conn, sub *shutdown.Subscription) {
	defer func() { <-l.sem }()

	c := respconn.New(conn)
	defer c.Close()

	h := handler.New(c, l.store, sub)
	if err := h.Run(); err != nil {
		log.Printf("kvresp: connection %s: %v", conn.RemoteAddr(), err)
	}
}
