package handler

import (
	"net"
	"testing"
	"time"

	"github.com/xtaci/kvresp/internal/resp"
	"github.com/xtaci/kvresp/internal/respconn"
	"github.com/xtaci/kvresp/internal/shutdown"
	"github.com/xtaci/kvresp/internal/store"
)

func newTestHandler(t *testing.T) (*Handler, *respconn.Conn, *store.Store, *shutdown.Broadcaster) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		serverSide.Close()
		clientSide.Close()
	})

	st := store.New()
	t.Cleanup(st.Shutdown)

	sd := shutdown.New()
	sub := sd.Subscribe()

	h := New(respconn.New(serverSide), st, sub)
	client := respconn.New(clientSide)
	return h, client, st, sd
}

func TestHandlerGetMissingKeyReturnsNull(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("GET")), resp.NewBulk([]byte("missing")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, ok, err := client.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	if !got.IsNull() {
		t.Fatalf("expected null reply, got %v", got)
	}
}

func TestHandlerSetThenGet(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	send := func(f resp.Frame) resp.Frame {
		t.Helper()
		if err := client.WriteFrame(f); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		got, ok, err := client.ReadFrame()
		if err != nil || !ok {
			t.Fatalf("read failed: ok=%v err=%v", ok, err)
		}
		return got
	}

	reply := send(resp.NewArray(resp.NewBulk([]byte("SET")), resp.NewBulk([]byte("foo")), resp.NewBulk([]byte("bar"))))
	if reply.Type() != resp.TypeSimple || reply.Str() != "OK" {
		t.Fatalf("unexpected SET reply: %v", reply)
	}

	reply = send(resp.NewArray(resp.NewBulk([]byte("GET")), resp.NewBulk([]byte("foo"))))
	if string(reply.Bulk()) != "bar" {
		t.Fatalf("unexpected GET reply: %v", reply)
	}
}

func TestHandlerUnknownCommandReturnsError(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("FROBNICATE")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, ok, err := client.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	if got.Type() != resp.TypeError {
		t.Fatalf("expected an error frame, got %v", got)
	}
}

func TestHandlerPublishWithNoSubscribersReturnsZero(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("PUBLISH")), resp.NewBulk([]byte("chan")), resp.NewBulk([]byte("hi")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, ok, err := client.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	if got.Int() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got.Int())
	}
}

func TestHandlerSubscribeAckCountsAreRunningTotals(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("SUBSCRIBE")), resp.NewBulk([]byte("a")), resp.NewBulk([]byte("b")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for i, want := range []uint64{1, 2} {
		got, ok, err := client.ReadFrame()
		if err != nil || !ok {
			t.Fatalf("read %d failed: ok=%v err=%v", i, ok, err)
		}
		items := got.Array()
		if len(items) != 3 || string(items[0].Bulk()) != "subscribe" || items[2].Int() != want {
			t.Fatalf("unexpected ack %d: %v", i, got)
		}
	}
}

func TestHandlerResubscribeToSameChannelStillAcks(t *testing.T) {
	h, client, _, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("SUBSCRIBE")), resp.NewBulk([]byte("a")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if got, ok, err := client.ReadFrame(); err != nil || !ok || got.Array()[2].Int() != 1 {
		t.Fatalf("unexpected first ack: ok=%v err=%v got=%v", ok, err, got)
	}

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("SUBSCRIBE")), resp.NewBulk([]byte("a")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, ok, err := client.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("read failed: ok=%v err=%v", ok, err)
	}
	items := got.Array()
	if len(items) != 3 || string(items[0].Bulk()) != "subscribe" || string(items[1].Bulk()) != "a" || items[2].Int() != 1 {
		t.Fatalf("expected a fresh ack with unchanged count 1, got %v", got)
	}
}

func TestHandlerSubscribeThenReceivesPublishedMessage(t *testing.T) {
	h, client, st, _ := newTestHandler(t)
	go h.Run()

	if err := client.WriteFrame(resp.NewArray(resp.NewBulk([]byte("SUBSCRIBE")), resp.NewBulk([]byte("room")))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, ok, err := client.ReadFrame(); err != nil || !ok {
		t.Fatalf("ack read failed: ok=%v err=%v", ok, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var n int
	for time.Now().Before(deadline) {
		n = st.Publish("room", []byte("hello"))
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 subscriber once registered, got %d", n)
	}

	got, ok, err := client.ReadFrame()
	if err != nil || !ok {
		t.Fatalf("message read failed: ok=%v err=%v", ok, err)
	}
	items := got.Array()
	if len(items) != 3 || string(items[0].Bulk()) != "message" || string(items[1].Bulk()) != "room" || string(items[2].Bulk()) != "hello" {
		t.Fatalf("unexpected message frame: %v", got)
	}
}
