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

// Package handler drives a single connection's command loop: a normal
// mode that answers one request per frame, and a subscribe mode that
// multiplexes client frames, pub/sub messages, and shutdown.
package handler

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/xtaci/kvresp/internal/command"
	"github.com/xtaci/kvresp/internal/resp"
	"github.com/xtaci/kvresp/internal/respconn"
	"github.com/xtaci/kvresp/internal/shutdown"
	"github.com/xtaci/kvresp/internal/store"
)

// Handler owns one connection's lifetime from accept to close.
type Handler struct {
	conn     *respconn.Conn
	store    *store.Store
	shutdown *shutdown.Subscription
}

// New builds a Handler for one accepted connection.
func New(conn *respconn.Conn, st *store.Store, sd *shutdown.Subscription) *Handler {
	return &Handler{conn: conn, store: st, shutdown: sd}
}

type frameResult struct {
	frame resp.Frame
	ok    bool
	err   error
}

// readLoop runs for the lifetime of the connection, feeding decoded
// frames (or the terminal error/clean-close) into out. It exits either
// when a terminal result is produced or when stop is closed by Run.
func (h *Handler) readLoop(out chan<- frameResult, stop <-chan struct{}) {
	for {
		f, ok, err := h.conn.ReadFrame()
		select {
		case out <- frameResult{frame: f, ok: ok, err: err}:
		case <-stop:
			return
		}
		if err != nil || !ok {
			return
		}
	}
}

// Run drives the connection until it disconnects, a protocol error
// occurs, or shutdown fires. It never returns an error for a clean
// client-initiated close.
func (h *Handler) Run() error {
	defer h.shutdown.Release()

	reqCh := make(chan frameResult)
	stop := make(chan struct{})
	go h.readLoop(reqCh, stop)
	defer close(stop)

	for {
		select {
		case <-h.shutdown.Done():
			return nil
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
			if cmd.Kind == command.KindSubscribe {
				return h.subscribeLoop(cmd, reqCh)
			}
			if err := h.applyOne(cmd); err != nil {
				return err
			}
		}
	}
}

func (h *Handler) applyOne(cmd command.Command) error {
	switch cmd.Kind {
	case command.KindGet:
		val, ok := h.store.Get(cmd.Key)
		if !ok {
			return h.conn.WriteFrame(resp.NewNull())
		}
		return h.conn.WriteFrame(resp.NewBulk(val))
	case command.KindSet:
		h.store.Set(cmd.Key, cmd.Value, cmd.Expire, cmd.HasExpire)
		return h.conn.WriteFrame(resp.NewSimple("OK"))
	case command.KindPublish:
		n := h.store.Publish(cmd.Channel, cmd.Message)
		return h.conn.WriteFrame(resp.NewInteger(uint64(n)))
	case command.KindPing:
		if cmd.HasMessage {
			return h.conn.WriteFrame(resp.NewBulk(cmd.PingMessage))
		}
		return h.conn.WriteFrame(resp.NewSimple("PONG"))
	case command.KindUnknown:
		return h.conn.WriteFrame(unknownCommandFrame(cmd.Name))
	default:
		return fmt.Errorf("handler: unexpected command kind %v in normal mode", cmd.Kind)
	}
}

func unknownCommandFrame(name string) resp.Frame {
	return resp.NewError(fmt.Sprintf("ERR unknown command '%s'", name))
}
