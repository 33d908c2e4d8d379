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

// Package resp implements the wire codec for the RESP-compatible subset
// used by this server: Simple, Error, Integer, Bulk (and its Null form),
// and Array, each newline-terminated with "\r\n".
package resp

import (
	"bytes"
	"strconv"
)

// Type identifies the concrete kind of a Frame. It mirrors the leading
// tag byte on the wire, except for TypeNull which shares the '$' tag
// with TypeBulk and is distinguished by content ("$-1\r\n").
type Type byte

const (
	TypeSimple  Type = '+'
	TypeError   Type = '-'
	TypeInteger Type = ':'
	TypeBulk    Type = '$'
	TypeArray   Type = '*'
	TypeNull    Type = 0
)

// Frame is a single RESP value. The zero Frame is not meaningful; use one
// of the constructors below.
type Frame struct {
	typ   Type
	str   string
	num   uint64
	bulk  []byte
	items []Frame
}

// NewSimple builds a Simple("+") frame.
func NewSimple(s string) Frame { return Frame{typ: TypeSimple, str: s} }

// NewError builds an Error("-") frame.
func NewError(s string) Frame { return Frame{typ: TypeError, str: s} }

// NewInteger builds an Integer(":") frame.
func NewInteger(n uint64) Frame { return Frame{typ: TypeInteger, num: n} }

// NewBulk builds a Bulk("$") frame. b may be empty or nil; either way the
// frame is an empty Bulk, not Null (use NewNull for that).
func NewBulk(b []byte) Frame { return Frame{typ: TypeBulk, bulk: b} }

// NewNull builds the Null form of Bulk ("$-1\r\n").
func NewNull() Frame { return Frame{typ: TypeNull} }

// NewArray builds an Array("*") frame from its elements.
func NewArray(items ...Frame) Frame { return Frame{typ: TypeArray, items: items} }

func (f Frame) Type() Type   { return f.typ }
func (f Frame) IsNull() bool { return f.typ == TypeNull }

// Str returns the payload of a Simple or Error frame.
func (f Frame) Str() string { return f.str }

// Int returns the payload of an Integer frame.
func (f Frame) Int() uint64 { return f.num }

// Bulk returns the payload of a Bulk frame. It is nil for any other type.
func (f Frame) Bulk() []byte { return f.bulk }

// Array returns the elements of an Array frame. It is nil for any other type.
func (f Frame) Array() []Frame { return f.items }

// Equal reports whether f and other represent the same value, recursing
// into arrays. Used by tests for round-trip comparisons.
func (f Frame) Equal(other Frame) bool {
	if f.typ != other.typ {
		return false
	}
	switch f.typ {
	case TypeSimple, TypeError:
		return f.str == other.str
	case TypeInteger:
		return f.num == other.num
	case TypeBulk:
		return bytes.Equal(f.bulk, other.bulk)
	case TypeNull:
		return true
	case TypeArray:
		if len(f.items) != len(other.items) {
			return false
		}
		for i := range f.items {
			if !f.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (f Frame) String() string {
	switch f.typ {
	case TypeSimple:
		return f.str
	case TypeError:
		return "(error) " + f.str
	case TypeInteger:
		return strconv.FormatUint(f.num, 10)
	case TypeNull:
		return "(nil)"
	case TypeBulk:
		return string(f.bulk)
	case TypeArray:
		s := "["
		for i, item := range f.items {
			if i > 0 {
				s += ", "
			}
			s += item.String()
		}
		return s + "]"
	default:
		return "(unknown)"
	}
}
