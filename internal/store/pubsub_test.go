package store

import "testing"

func TestHubSubscribeUnsubscribe(t *testing.T) {
	h := newHub()
	sub := h.subscribe("room")
	if n := h.publish([]byte("hi")); n != 1 {
		t.Fatalf("expected 1 subscriber, got %d", n)
	}
	sub.Close()
	if n := h.publish([]byte("bye")); n != 0 {
		t.Fatalf("expected 0 subscribers after close, got %d", n)
	}
}

func TestHubDropsOldestWhenSlowConsumerBufferFull(t *testing.T) {
	h := newHub()
	sub := h.subscribe("room")
	defer sub.Close()

	for i := 0; i < channelBuffer+10; i++ {
		h.publish([]byte{byte(i)})
	}

	// The subscriber never drained; the channel should be full but not
	// have blocked the publisher, and the most recent send should have
	// been a lagged marker (the oldest entries were evicted to make room).
	if len(sub.ch) != channelBuffer {
		t.Fatalf("expected channel to be full at capacity, got %d", len(sub.ch))
	}
}
