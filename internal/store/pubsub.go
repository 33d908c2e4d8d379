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

import "sync"

// channelBuffer bounds how many undelivered messages a lagging subscriber
// may accumulate before the oldest is dropped in favor of the newest.
const channelBuffer = 1024

// Message is one payload delivered to a Subscription. A Message with
// Lagged set carries no payload: it is the marker queued when the
// subscriber fell behind, and the subscriber should treat it as "resume
// consuming", never as a fatal condition.
type Message struct {
	Payload []byte
	Lagged  bool
}

// Subscription is a single connection's membership in one channel's
// broadcast. It is never closed by the hub itself; the holder calls
// Close when it no longer wants to receive messages.
type Subscription struct {
	channel string
	ch      chan Message
	hub     *hub
}

// C returns the channel on which messages for this subscription arrive.
func (s *Subscription) C() <-chan Message { return s.ch }

// Close removes the subscription from its channel's hub. Safe to call
// more than once.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

// hub fans out published payloads to every subscriber of one channel
// name. A slow subscriber never blocks a publish: when its buffer is
// full, the oldest queued message is dropped and a payload-less Lagged
// marker is queued in place of the new message, so the new message is
// not delivered to that subscriber. This is a bounded, lossy broadcast
// channel (grounded on the goa-ai MCP runtime's channelBroadcaster).
type hub struct {
	mu   sync.Mutex
	subs map[*Subscription]chan Message
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]chan Message)}
}

func (h *hub) subscribe(channel string) *Subscription {
	sub := &Subscription{channel: channel, ch: make(chan Message, channelBuffer), hub: h}
	h.mu.Lock()
	h.subs[sub] = sub.ch
	h.mu.Unlock()
	return sub
}

func (h *hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// publish delivers payload to every current subscriber and returns the
// number of subscribers live at the moment of the call.
func (h *hub) publish(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- Message{Payload: payload}:
		default:
			// Slow consumer: evict the oldest queued message, then
			// deliver a lagged marker in its place.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Message{Lagged: true}:
			default:
			}
		}
	}
	return len(h.subs)
}
