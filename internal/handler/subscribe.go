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

package handler

import (
	"github.com/pkg/errors"

	"github.com/xtaci/kvresp/internal/command"
	"github.com/xtaci/kvresp/internal/resp"
	"github.com/xtaci/kvresp/internal/store"
)

// subMsg tags a store.Message with the channel it arrived on, so every
// subscription's forwarder goroutine can feed one shared channel that
// the main select loop reads from. Go has no way to select over a
// dynamically sized set of channels directly, so each subscription gets
// a small forwarder instead (the fan-in shape used by smux's recvLoop,
// generalized from one socket to N broadcast channels).
type subMsg struct {
	channel string
	payload []byte
	lagged  bool
}

type subEntry struct {
	sub  *store.Subscription
	done chan struct{}
}

type subscribeState struct {
	subs  map[string]*subEntry
	msgCh chan subMsg
}

func (h *Handler) addSubscription(state *subscribeState, channel string) {
	sub := h.store.Subscribe(channel)
	done := make(chan struct{})
	state.subs[channel] = &subEntry{sub: sub, done: done}

	go func() {
		for {
			select {
			case m, ok := <-sub.C():
				if !ok {
					return
				}
				select {
				case state.msgCh <- subMsg{channel: channel, payload: m.Payload, lagged: m.Lagged}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
}

func (h *Handler) removeSubscription(state *subscribeState, channel string) {
	e, ok := state.subs[channel]
	if !ok {
		return
	}
	close(e.done)
	e.sub.Close()
	delete(state.subs, channel)
}

// subscribeMany acks every named channel in order, subscribing to any
// not already subscribed. A channel already subscribed is acked again
// with the unchanged running count rather than being re-subscribed,
// mirroring how every UNSUBSCRIBE gets an ack regardless of match.
func (h *Handler) subscribeMany(state *subscribeState, channels []string) error {
	for _, ch := range channels {
		if _, exists := state.subs[ch]; !exists {
			h.addSubscription(state, ch)
		}
		if err := h.conn.WriteFrame(subscribeAckFrame(ch, len(state.subs))); err != nil {
			return err
		}
	}
	return nil
}

// subscribeLoop owns the connection for as long as it stays in
// subscribe mode: it never returns to normal mode, mirroring the
// reference implementation's design. It exits on client disconnect,
// shutdown, or a write error.
func (h *Handler) subscribeLoop(initial command.Command, reqCh <-chan frameResult) error {
	state := &subscribeState{subs: make(map[string]*subEntry), msgCh: make(chan subMsg, 64)}
	defer func() {
		for ch := range state.subs {
			h.removeSubscription(state, ch)
		}
	}()

	if err := h.subscribeMany(state, initial.Channels); err != nil {
		return err
	}

	for {
		select {
		case <-h.shutdown.Done():
			return nil
		case m := <-state.msgCh:
			if m.lagged {
				continue
			}
			if _, ok := state.subs[m.channel]; !ok {
				continue // unsubscribed while the message was in flight
			}
			if err := h.conn.WriteFrame(messageFrame(m.channel, m.payload)); err != nil {
				return err
			}
		case res := <-reqCh:
			if res.err != nil {
				return res.err
			}
			if !res.ok {
				return nil
			}
			cmd, err := command.Parse(res.frame)
			if err != nil {
				return errors.Wrap(err, "parse command")
			}
			if err := h.handleSubscribeModeCommand(state, cmd); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) handleSubscribeModeCommand(state *subscribeState, cmd command.Command) error {
	switch cmd.Kind {
	case command.KindSubscribe:
		return h.subscribeMany(state, cmd.Channels)
	case command.KindUnsubscribe:
		channels := cmd.Channels
		if len(channels) == 0 {
			channels = make([]string, 0, len(state.subs))
			for ch := range state.subs {
				channels = append(channels, ch)
			}
		}
		for _, ch := range channels {
			h.removeSubscription(state, ch)
			if err := h.conn.WriteFrame(unsubscribeAckFrame(ch, len(state.subs))); err != nil {
				return err
			}
		}
		return nil
	default:
		return h.conn.WriteFrame(unknownCommandFrame(cmd.Name))
	}
}

func subscribeAckFrame(channel string, count int) resp.Frame {
	return resp.NewArray(
		resp.NewBulk([]byte("subscribe")),
		resp.NewBulk([]byte(channel)),
		resp.NewInteger(uint64(count)),
	)
}

func unsubscribeAckFrame(channel string, count int) resp.Frame {
	return resp.NewArray(
		resp.NewBulk([]byte("unsubscribe")),
		resp.NewBulk([]byte(channel)),
		resp.NewInteger(uint64(count)),
	)
}

func messageFrame(channel string, payload []byte) resp.Frame {
	return resp.NewArray(
		resp.NewBulk([]byte("message")),
		resp.NewBulk([]byte(channel)),
		resp.NewBulk(payload),
	)
}
