package listener

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/xtaci/kvresp/internal/resp"
	"github.com/xtaci/kvresp/internal/respconn"
	"github.com/xtaci/kvresp/internal/shutdown"
	"github.com/xtaci/kvresp/internal/store"
)

func TestListenerServesSet(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	st := store.New()
	defer st.Shutdown()
	sd := shutdown.New()

	l := New(ln, st, sd, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := respconn.New(conn)

	if err := c.WriteFrame(resp.NewArray(resp.NewBulk([]byte("SET")), resp.NewBulk([]byte("k")), resp.NewBulk([]byte("v")))); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply, ok, err := c.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if reply.Type() != resp.TypeSimple || reply.Str() != "OK" {
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

func TestListenerAdmissionControlLimitsConcurrency(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	st := store.New()
	defer st.Shutdown()
	sd := shutdown.New()

	opts := DefaultOptions()
	opts.MaxConnections = 1
	l := New(ln, st, sd, opts)
	if cap(l.sem) != 1 {
		t.Fatalf("expected semaphore capacity 1, got %d", cap(l.sem))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
}
