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

package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

var (
	// ErrIncomplete means the cursor ran off the end of the buffer before a
	// full frame could be recognized; the caller should read more bytes and
	// retry from the start of the same buffer.
	ErrIncomplete = errors.New("resp: incomplete frame")

	// ErrProtocol means the bytes seen so far can never form a valid frame.
	ErrProtocol = errors.New("resp: protocol error")
)

// Cursor is a read-only position into a byte slice. Check advances a
// Cursor without copying or allocating; Parse additionally materializes
// a Frame, copying Bulk payloads into owned buffers.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a Cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int { return c.pos }

func (c *Cursor) getByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrIncomplete
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *Cursor) peekByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrIncomplete
	}
	return c.buf[c.pos], nil
}

func (c *Cursor) skip(n int) error {
	if len(c.buf)-c.pos < n {
		return ErrIncomplete
	}
	c.pos += n
	return nil
}

// getLine scans forward for a "\r\n" terminator and returns the bytes
// before it, advancing past the terminator. It does not copy.
func (c *Cursor) getLine() ([]byte, error) {
	for i := c.pos; i+1 < len(c.buf); i++ {
		if c.buf[i] == '\r' && c.buf[i+1] == '\n' {
			line := c.buf[c.pos:i]
			c.pos = i + 2
			return line, nil
		}
	}
	return nil, ErrIncomplete
}

func (c *Cursor) getDecimal() (uint64, error) {
	line, err := c.getLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid decimal %q", ErrProtocol, line)
	}
	return n, nil
}

// Check validates and advances past one frame in the cursor without
// allocating. It returns ErrIncomplete if more bytes are needed, or a
// wrapped ErrProtocol if the bytes seen can never form a valid frame.
func Check(c *Cursor) error {
	tag, err := c.getByte()
	if err != nil {
		return err
	}
	switch Type(tag) {
	case TypeSimple, TypeError:
		_, err := c.getLine()
		return err
	case TypeInteger:
		_, err := c.getDecimal()
		return err
	case TypeBulk:
		b, err := c.peekByte()
		if err != nil {
			return err
		}
		if b == '-' {
			line, err := c.getLine()
			if err != nil {
				return err
			}
			if string(line) != "-1" {
				return fmt.Errorf("%w: invalid null bulk marker %q", ErrProtocol, line)
			}
			return nil
		}
		n, err := c.getDecimal()
		if err != nil {
			return err
		}
		return c.skip(int(n) + 2)
	case TypeArray:
		n, err := c.getDecimal()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			if err := Check(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, tag)
	}
}

// Parse decodes one frame from the cursor, copying Bulk payloads into
// owned buffers. Callers typically call Check first against the same
// bytes to know a full frame is present.
func Parse(c *Cursor) (Frame, error) {
	tag, err := c.getByte()
	if err != nil {
		return Frame{}, err
	}
	switch Type(tag) {
	case TypeSimple:
		line, err := c.getLine()
		if err != nil {
			return Frame{}, err
		}
		if !utf8.Valid(line) {
			return Frame{}, fmt.Errorf("%w: simple string is not valid utf-8", ErrProtocol)
		}
		return NewSimple(string(line)), nil
	case TypeError:
		line, err := c.getLine()
		if err != nil {
			return Frame{}, err
		}
		if !utf8.Valid(line) {
			return Frame{}, fmt.Errorf("%w: error string is not valid utf-8", ErrProtocol)
		}
		return NewError(string(line)), nil
	case TypeInteger:
		n, err := c.getDecimal()
		if err != nil {
			return Frame{}, err
		}
		return NewInteger(n), nil
	case TypeBulk:
		b, err := c.peekByte()
		if err != nil {
			return Frame{}, err
		}
		if b == '-' {
			line, err := c.getLine()
			if err != nil {
				return Frame{}, err
			}
			if string(line) != "-1" {
				return Frame{}, fmt.Errorf("%w: invalid null bulk marker %q", ErrProtocol, line)
			}
			return NewNull(), nil
		}
		n, err := c.getDecimal()
		if err != nil {
			return Frame{}, err
		}
		total := int(n) + 2
		if len(c.buf)-c.pos < total {
			return Frame{}, ErrIncomplete
		}
		data := append([]byte(nil), c.buf[c.pos:c.pos+int(n)]...)
		c.pos += total
		return NewBulk(data), nil
	case TypeArray:
		n, err := c.getDecimal()
		if err != nil {
			return Frame{}, err
		}
		items := make([]Frame, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := Parse(c)
			if err != nil {
				return Frame{}, err
			}
			items = append(items, item)
		}
		return NewArray(items...), nil
	default:
		return Frame{}, fmt.Errorf("%w: invalid frame type byte %q", ErrProtocol, tag)
	}
}

// Encode writes f to w in wire format, recursing into nested arrays.
// Connection-level writers that restrict responses to one array level
// deep should use EncodeScalar and WriteArrayHeader instead.
func Encode(w io.Writer, f Frame) error {
	bw, flush := asBufioWriter(w)
	if err := encode(bw, f); err != nil {
		return err
	}
	return flush()
}

// EncodeScalar encodes a non-array frame. It returns an error if f is an
// Array frame; callers that need array support should use Encode or
// compose WriteArrayHeader with per-element EncodeScalar calls.
func EncodeScalar(w io.Writer, f Frame) error {
	if f.typ == TypeArray {
		return fmt.Errorf("%w: EncodeScalar called with an array frame", ErrProtocol)
	}
	bw, flush := asBufioWriter(w)
	if err := encode(bw, f); err != nil {
		return err
	}
	return flush()
}

// WriteArrayHeader writes just the '*' header line for an array of n elements.
func WriteArrayHeader(w io.Writer, n int) error {
	bw, flush := asBufioWriter(w)
	if err := writeLine(bw, '*', []byte(strconv.Itoa(n))); err != nil {
		return err
	}
	return flush()
}

func asBufioWriter(w io.Writer) (*bufio.Writer, func() error) {
	if bw, ok := w.(*bufio.Writer); ok {
		return bw, func() error { return nil }
	}
	bw := bufio.NewWriter(w)
	return bw, bw.Flush
}

func encode(w *bufio.Writer, f Frame) error {
	switch f.typ {
	case TypeSimple:
		return writeLine(w, '+', []byte(f.str))
	case TypeError:
		return writeLine(w, '-', []byte(f.str))
	case TypeInteger:
		return writeLine(w, ':', []byte(strconv.FormatUint(f.num, 10)))
	case TypeNull:
		_, err := w.WriteString("$-1\r\n")
		return err
	case TypeBulk:
		if err := writeLine(w, '$', []byte(strconv.Itoa(len(f.bulk)))); err != nil {
			return err
		}
		if _, err := w.Write(f.bulk); err != nil {
			return err
		}
		_, err := w.WriteString("\r\n")
		return err
	case TypeArray:
		if err := writeLine(w, '*', []byte(strconv.Itoa(len(f.items)))); err != nil {
			return err
		}
		for _, item := range f.items {
			if err := encode(w, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: cannot encode frame with unknown type", ErrProtocol)
	}
}

func writeLine(w *bufio.Writer, tag byte, body []byte) error {
	if err := w.WriteByte(tag); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}
