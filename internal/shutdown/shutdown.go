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

// Package shutdown provides a one-shot broadcast signal plus drain
// tracking, shaped after smux's Session.die/dieOnce/CloseChan idiom: a
// channel that is closed exactly once notifies every subscriber at
// once, and a sync.WaitGroup tracks how many subscribers are still
// doing work so the owner can wait for a clean drain.
package shutdown

import "sync"

// Broadcaster is the single owner of the one-shot shutdown signal. The
// listener holds the only Broadcaster; every accepted connection holds
// a Subscription obtained from it.
type Broadcaster struct {
	ch   chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New returns a Broadcaster that has not yet fired.
func New() *Broadcaster {
	return &Broadcaster{ch: make(chan struct{})}
}

// Trigger fires the shutdown signal. Safe to call more than once or
// concurrently; only the first call has any effect.
func (b *Broadcaster) Trigger() {
	b.once.Do(func() { close(b.ch) })
}

// IsShutdown reports whether Trigger has fired.
func (b *Broadcaster) IsShutdown() bool {
	select {
	case <-b.ch:
		return true
	default:
		return false
	}
}

// Subscribe registers one unit of in-flight work (typically one
// connection) and returns a handle for observing the shutdown signal.
// The caller must call Release exactly once when that work completes.
func (b *Broadcaster) Subscribe() *Subscription {
	b.wg.Add(1)
	return &Subscription{done: b.ch, wg: &b.wg}
}

// Wait blocks until every Subscription handed out so far has been
// released. Callers should Trigger before calling Wait, or this could
// block forever waiting for subscribers that have no reason to exit.
func (b *Broadcaster) Wait() { b.wg.Wait() }

// Subscription is one connection's view of the shutdown signal.
type Subscription struct {
	done <-chan struct{}
	wg   *sync.WaitGroup

	releaseOnce sync.Once
}

// Done returns a channel that closes when shutdown is triggered.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// IsShutdown reports whether shutdown has been triggered.
func (s *Subscription) IsShutdown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Release marks this subscription's work as finished. Safe to call more
// than once; only the first call counts toward the drain.
func (s *Subscription) Release() {
	s.releaseOnce.Do(func() { s.wg.Done() })
}
