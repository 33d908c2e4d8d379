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

// Package kvresp wires the store, listener, and shutdown broadcaster
// together into one running server, the way a caller embedding this
// as a library would use it.
package kvresp

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/xtaci/kvresp/internal/listener"
	"github.com/xtaci/kvresp/internal/shutdown"
	"github.com/xtaci/kvresp/internal/store"
)

// Run serves RESP connections accepted from ln until ctx is canceled
// or the accept loop gives up past its backoff ceiling. It blocks
// until every in-flight connection has drained.
func Run(ctx context.Context, ln net.Listener, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	st := store.New()
	defer st.Shutdown()

	sd := shutdown.New()

	if o.statsInterval > 0 {
		statsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go logStats(statsCtx, st, o.statsInterval)
	}

	l := listener.New(ln, st, sd, listener.Options{
		MaxConnections:       o.maxConnections,
		AcceptBackoffCeiling: o.acceptBackoffCeiling,
	})
	return l.Run(ctx)
}

// logStats periodically dumps store counters, grounded on the
// teacher's periodic SNMP-dump idiom but writing to the standard
// logger instead of a CSV file.
func logStats(ctx context.Context, st *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := st.Stats()
			log.Printf("stats: hits=%d misses=%d expired=%d published=%d", s.Hits, s.Misses, s.Expired, s.Published)
		}
	}
}
