package kvresp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/xtaci/kvresp/internal/resp"
	"github.com/xtaci/kvresp/internal/respconn"
)

func TestRunServesConnectionsUntilCanceled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, ln, WithMaxConnections(10)) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := respconn.New(conn)

	if err := c.WriteFrame(resp.NewArray(resp.NewBulk([]byte("PING")))); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, ok, err := c.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if reply.Type() != resp.TypeSimple || reply.Str() != "PONG" {
		t.Fatalf("unexpected reply: %v", reply)
	}
	c.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
