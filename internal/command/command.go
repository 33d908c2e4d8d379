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

// Package command parses a resp.Frame into one of the six supported
// commands, validating arity and argument shape.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xtaci/kvresp/internal/resp"
)

// ErrShape means the command array did not have the expected arity or
// argument types for its name. The connection that produced it is
// terminated by the handler; it is not answered with an Error frame.
var ErrShape = errors.New("command: malformed command")

// Kind identifies which of the six supported commands a Command is, or
// KindUnknown for anything else (which is a successfully parsed command,
// answered with an Error frame rather than terminating the connection).
type Kind int

const (
	KindGet Kind = iota
	KindSet
	KindPublish
	KindSubscribe
	KindUnsubscribe
	KindPing
	KindUnknown
)

// Command is the parsed, validated form of one request frame.
type Command struct {
	Kind Kind
	Name string

	Key       string
	Value     []byte
	Expire    time.Duration // meaningful only when HasExpire is true
	HasExpire bool          // whether SET supplied an EX/PX option at all

	Channel string
	Message []byte

	Channels []string

	HasMessage  bool
	PingMessage []byte
}

// Parse validates f's shape and returns the Command it represents.
// Unrecognized command names are not an error: they parse successfully
// as KindUnknown so callers can answer them without tearing down the
// connection.
func Parse(f resp.Frame) (Command, error) {
	if f.Type() != resp.TypeArray {
		return Command{}, fmt.Errorf("%w: expected an array frame", ErrShape)
	}
	items := f.Array()
	if len(items) == 0 {
		return Command{}, fmt.Errorf("%w: empty command array", ErrShape)
	}
	if items[0].Type() != resp.TypeBulk {
		return Command{}, fmt.Errorf("%w: command name must be a bulk string", ErrShape)
	}
	name := string(items[0].Bulk())

	switch strings.ToLower(name) {
	case "get":
		return parseGet(name, items)
	case "set":
		return parseSet(name, items)
	case "publish":
		return parsePublish(name, items)
	case "subscribe":
		return parseSubscribe(name, items)
	case "unsubscribe":
		return parseUnsubscribe(name, items)
	case "ping":
		return parsePing(name, items)
	default:
		return Command{Kind: KindUnknown, Name: name}, nil
	}
}

func bulkString(f resp.Frame) (string, error) {
	if f.Type() != resp.TypeBulk {
		return "", fmt.Errorf("%w: expected a bulk string argument", ErrShape)
	}
	b := f.Bulk()
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: argument is not valid utf-8", ErrShape)
	}
	return string(b), nil
}

func bulkBytes(f resp.Frame) ([]byte, error) {
	if f.Type() != resp.TypeBulk {
		return nil, fmt.Errorf("%w: expected a bulk string argument", ErrShape)
	}
	return f.Bulk(), nil
}

func parseGet(name string, items []resp.Frame) (Command, error) {
	if len(items) != 2 {
		return Command{}, fmt.Errorf("%w: GET requires exactly 1 argument", ErrShape)
	}
	key, err := bulkString(items[1])
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindGet, Name: name, Key: key}, nil
}

func parseSet(name string, items []resp.Frame) (Command, error) {
	if len(items) != 3 && len(items) != 5 {
		return Command{}, fmt.Errorf("%w: SET requires 2 or 4 arguments", ErrShape)
	}
	key, err := bulkString(items[1])
	if err != nil {
		return Command{}, err
	}
	value, err := bulkBytes(items[2])
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Kind: KindSet, Name: name, Key: key, Value: value}
	if len(items) == 5 {
		unit, err := bulkString(items[3])
		if err != nil {
			return Command{}, err
		}
		numStr, err := bulkString(items[4])
		if err != nil {
			return Command{}, err
		}
		n, perr := strconv.ParseUint(numStr, 10, 64)
		if perr != nil {
			return Command{}, fmt.Errorf("%w: SET expiration must be an integer", ErrShape)
		}
		switch strings.ToUpper(unit) {
		case "EX":
			cmd.Expire = time.Duration(n) * time.Second
		case "PX":
			cmd.Expire = time.Duration(n) * time.Millisecond
		default:
			return Command{}, fmt.Errorf("%w: SET only supports EX or PX expiration options", ErrShape)
		}
		cmd.HasExpire = true
	}
	return cmd, nil
}

func parsePublish(name string, items []resp.Frame) (Command, error) {
	if len(items) != 3 {
		return Command{}, fmt.Errorf("%w: PUBLISH requires exactly 2 arguments", ErrShape)
	}
	channel, err := bulkString(items[1])
	if err != nil {
		return Command{}, err
	}
	message, err := bulkBytes(items[2])
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: KindPublish, Name: name, Channel: channel, Message: message}, nil
}

func parseSubscribe(name string, items []resp.Frame) (Command, error) {
	if len(items) < 2 {
		return Command{}, fmt.Errorf("%w: SUBSCRIBE requires at least 1 channel", ErrShape)
	}
	channels := make([]string, 0, len(items)-1)
	for _, item := range items[1:] {
		ch, err := bulkString(item)
		if err != nil {
			return Command{}, err
		}
		channels = append(channels, ch)
	}
	return Command{Kind: KindSubscribe, Name: name, Channels: channels}, nil
}

func parseUnsubscribe(name string, items []resp.Frame) (Command, error) {
	channels := make([]string, 0, len(items)-1)
	for _, item := range items[1:] {
		ch, err := bulkString(item)
		if err != nil {
			return Command{}, err
		}
		channels = append(channels, ch)
	}
	return Command{Kind: KindUnsubscribe, Name: name, Channels: channels}, nil
}

func parsePing(name string, items []resp.Frame) (Command, error) {
	if len(items) != 1 && len(items) != 2 {
		return Command{}, fmt.Errorf("%w: PING takes at most 1 argument", ErrShape)
	}
	cmd := Command{Kind: KindPing, Name: name}
	if len(items) == 2 {
		msg, err := bulkBytes(items[1])
		if err != nil {
			return Command{}, err
		}
		cmd.HasMessage = true
		cmd.PingMessage = msg
	}
	return cmd, nil
}
