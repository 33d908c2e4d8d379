package respconn

import (
	"net"
	"testing"

	"github.com/xtaci/kvresp/internal/resp"
)

func pipePair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return New(a), New(b)
}

func TestWriteFrameThenReadFrame(t *testing.T) {
	client, server := pipePair(t)

	done := make(chan error, 1)
	go func() {
		done <- client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("GET")), resp.NewBulk([]byte("foo"))))
	}()

	got, ok, err := server.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected a frame, got clean close")
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	if got.Type() != resp.TypeArray || len(got.Array()) != 2 {
		t.Fatalf("unexpected frame: %v", got)
	}
}

func TestReadFrameCleanClose(t *testing.T) {
	client, server := pipePair(t)
	go client.Close()

	_, ok, err := server.ReadFrame()
	if err != nil {
		t.Fatalf("expected no error on clean close, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false on clean close")
	}
}

func TestWriteFrameRejectsNestedArray(t *testing.T) {
	client, _ := pipePair(t)
	err := client.WriteFrame(resp.NewArray(resp.NewArray(resp.NewInteger(1))))
	if err == nil {
		t.Fatalf("expected error writing a nested array response")
	}
}
