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

// Package store holds the state shared across every connection: the
// key-value map with per-key expiration, and the pub/sub channel
// registry. A background goroutine purges expired keys on a schedule;
// Get additionally purges lazily, on demand.
package store

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

type entry struct {
	data      []byte
	expiresAt time.Time // zero value means no expiration
}

// Stats is a point-in-time snapshot of the counters a Store maintains.
type Stats struct {
	Hits      int64
	Misses    int64
	Expired   int64
	Published int64
}

// Store is the shared, mutex-guarded state engine. The zero Store is not
// usable; construct one with New.
type Store struct {
	mu       sync.Mutex
	entries  map[string]entry
	pubsub   map[string]*hub
	exp      *expiryHeap
	shutdown bool
	wake     chan struct{}

	hits      atomic.Int64
	misses    atomic.Int64
	expired   atomic.Int64
	published atomic.Int64
}

// New creates a Store and starts its background expiration worker. Call
// Shutdown when the store is no longer needed so the worker goroutine
// can exit.
func New() *Store {
	s := &Store{
		entries: make(map[string]entry),
		pubsub:  make(map[string]*hub),
		exp:     newExpiryHeap(),
		wake:    make(chan struct{}, 1),
	}
	go s.runExpirationWorker()
	return s
}

// Get returns the value for key and whether it was present and
// unexpired. An entry found to be expired is purged immediately (lazy
// expiration) in addition to the worker's scheduled sweeps.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	if s.isExpiredLocked(e, time.Now()) {
		s.removeLocked(key)
		s.misses.Add(1)
		s.expired.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return e.data, true
}

func (s *Store) isExpiredLocked(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

func (s *Store) removeLocked(key string) {
	if idx, ok := s.exp.index[key]; ok {
		heap.Remove(s.exp, idx)
	}
	delete(s.entries, key)
}

// Set stores value under key, replacing any existing entry. hasExpire
// false means the key never expires, matching a bare SET with no EX/PX
// option; hasExpire true installs a deadline expire relative to now,
// including a zero or negative expire (an immediate, already-expired
// deadline) — distinct from "no TTL at all".
func (s *Store) Set(key string, value []byte, expire time.Duration, hasExpire bool) {
	s.mu.Lock()

	var expiresAt time.Time
	notify := false
	if hasExpire {
		expiresAt = time.Now().Add(expire)
		if s.exp.Len() == 0 || expiresAt.Before(s.exp.items[0].deadline) {
			notify = true
		}
	}

	prev, had := s.entries[key]
	s.entries[key] = entry{data: value, expiresAt: expiresAt}
	if had && !prev.expiresAt.IsZero() {
		if idx, ok := s.exp.index[key]; ok {
			heap.Remove(s.exp, idx)
		}
	}
	if !expiresAt.IsZero() {
		heap.Push(s.exp, expiryItem{deadline: expiresAt, key: key})
	}

	s.mu.Unlock()

	if notify {
		s.notifyWorker()
	}
}

// Subscribe registers the caller as a listener on channel, creating the
// channel's broadcast hub on first use.
func (s *Store) Subscribe(channel string) *Subscription {
	s.mu.Lock()
	h, ok := s.pubsub[channel]
	if !ok {
		h = newHub()
		s.pubsub[channel] = h
	}
	s.mu.Unlock()
	return h.subscribe(channel)
}

// Publish delivers payload to channel's current subscribers and returns
// how many there were. Publishing to a channel with no subscribers (or
// that has never been subscribed to) returns 0.
func (s *Store) Publish(channel string, payload []byte) int {
	s.mu.Lock()
	h, ok := s.pubsub[channel]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	n := h.publish(payload)
	s.published.Add(1)
	return n
}

// Shutdown signals the background expiration worker to stop. It does
// not close pub/sub channels; connections still holding a Subscription
// learn of shutdown through the handler's own shutdown signal instead.
func (s *Store) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	s.notifyWorker()
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Expired:   s.expired.Load(),
		Published: s.published.Load(),
	}
}

func (s *Store) notifyWorker() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
