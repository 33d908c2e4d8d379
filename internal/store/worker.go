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

package store

import "time"

// runExpirationWorker purges due keys, then sleeps until either the
// next deadline or a coalescing wake notification, re-reading state on
// every iteration. Unlike the reference implementation this is modeled
// on, an empty expiration set blocks indefinitely on the wake channel
// instead of busy-looping.
func (s *Store) runExpirationWorker() {
	for {
		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			return
		}
		next := s.purgeExpiredLocked()
		s.mu.Unlock()

		if next.IsZero() {
			<-s.wake
			continue
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		}
	}
}

// purgeExpiredLocked removes every key whose deadline has passed and
// returns the next deadline still pending, or the zero time if the
// expiration set is now empty. Callers must hold s.mu.
func (s *Store) purgeExpiredLocked() time.Time {
	now := time.Now()
	for s.exp.Len() > 0 {
		top := s.exp.items[0]
		if top.deadline.After(now) {
			return top.deadline
		}
		s.removeLocked(top.key)
		s.expired.Add(1)
	}
	return time.Time{}
}
