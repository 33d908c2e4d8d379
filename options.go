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

package kvresp

import "time"

type options struct {
	maxConnections       int
	acceptBackoffCeiling time.Duration
	statsInterval        time.Duration
}

func defaultOptions() options {
	return options{
		maxConnections:       250,
		acceptBackoffCeiling: 64 * time.Second,
		statsInterval:        0,
	}
}

// Option configures a Run call.
type Option func(*options)

// WithMaxConnections bounds how many connections are served concurrently.
func WithMaxConnections(n int) Option {
	return func(o *options) { o.maxConnections = n }
}

// WithAcceptBackoffCeiling sets the largest backoff slept between
// retries on a transient Accept error before the server gives up.
func WithAcceptBackoffCeiling(d time.Duration) Option {
	return func(o *options) { o.acceptBackoffCeiling = d }
}

// WithStatsInterval enables periodic logging of store.Stats at the
// given interval. Zero (the default) disables stats logging.
func WithStatsInterval(d time.Duration) Option {
	return func(o *options) { o.statsInterval = d }
}
