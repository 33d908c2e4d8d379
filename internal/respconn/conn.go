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

// Package respconn wraps a net.Conn with frame-level read and write
// operations, decoupling command handling from wire-level buffering.
package respconn

import (
	"bufio"
	"io"
	"net"

	"github.com/pkg/errors"

	"github.com/xtaci/kvresp/internal/resp"
)

const initialReadBufSize = 4096

// Conn decorates a net.Conn with ReadFrame/WriteFrame. It owns a growable
// read buffer (starting at 4096 bytes, extended by each read of up to
// 4096 bytes) and a bufio.Writer flushed exactly once per WriteFrame call.
type Conn struct {
	nc  net.Conn
	bw  *bufio.Writer
	buf []byte
}

// New wraps nc for frame-level I/O.
func New(nc net.Conn) *Conn {
	return &Conn{
		nc:  nc,
		bw:  bufio.NewWriter(nc),
		buf: make([]byte, 0, initialReadBufSize),
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// RemoteAddr returns the remote network address of the underlying connection.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// ReadFrame reads one frame off the connection, growing the internal
// buffer and issuing more reads until a full frame is available. It
// returns ok=false with a nil error on a clean peer-initiated close with
// no partial frame pending, and a "connection reset by peer" error if
// the peer closes mid-frame.
func (c *Conn) ReadFrame() (resp.Frame, bool, error) {
	for {
		f, n, err := tryDecode(c.buf)
		switch {
		case err == nil:
			c.buf = append([]byte(nil), c.buf[n:]...)
			return f, true, nil
		case errors.Is(err, resp.ErrIncomplete):
			// fall through to read more bytes
		default:
			return resp.Frame{}, false, errors.Wrap(err, "decode frame")
		}

		chunk := make([]byte, initialReadBufSize)
		n2, rerr := c.nc.Read(chunk)
		if n2 > 0 {
			c.buf = append(c.buf, chunk[:n2]...)
		}
		if rerr != nil {
			if rerr == io.EOF {
				if len(c.buf) == 0 {
					return resp.Frame{}, false, nil
				}
				return resp.Frame{}, false, errors.New("connection reset by peer")
			}
			return resp.Frame{}, false, errors.Wrap(rerr, "read")
		}
	}
}

func tryDecode(buf []byte) (resp.Frame, int, error) {
	cur := resp.NewCursor(buf)
	if err := resp.Check(cur); err != nil {
		return resp.Frame{}, 0, err
	}
	n := cur.Pos()
	pcur := resp.NewCursor(buf[:n])
	f, err := resp.Parse(pcur)
	if err != nil {
		return resp.Frame{}, 0, err
	}
	return f, n, nil
}

// WriteFrame writes f to the connection and flushes exactly once. A
// response is at most one Array level deep; an Array element that is
// itself an Array is a programmer error, and WriteFrame returns an error
// without flushing.
func (c *Conn) WriteFrame(f resp.Frame) error {
	if f.Type() == resp.TypeArray {
		items := f.Array()
		if err := resp.WriteArrayHeader(c.bw, len(items)); err != nil {
			return errors.Wrap(err, "write frame")
		}
		for _, item := range items {
			if item.Type() == resp.TypeArray {
				return errors.New("respconn: nested array elements are not supported in responses")
			}
			if err := resp.EncodeScalar(c.bw, item); err != nil {
				return errors.Wrap(err, "write frame")
			}
		}
	} else if err := resp.EncodeScalar(c.bw, f); err != nil {
		return errors.Wrap(err, "write frame")
	}
	return errors.Wrap(c.bw.Flush(), "flush")
}
