package store

import (
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	s := New()
	defer s.Shutdown()

	if _, ok := s.Get("missing"); ok {
		t.Fatalf("expected missing key to report not found")
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), 0, false)
	v, ok := s.Get("foo")
	if !ok || string(v) != "bar" {
		t.Fatalf("unexpected get result: %q %v", v, ok)
	}
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), 0, false)
	s.Set("foo", []byte("baz"), 0, false)
	v, _ := s.Get("foo")
	if string(v) != "baz" {
		t.Fatalf("expected overwritten value, got %q", v)
	}
}

func TestGetExpiresLazily(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), time.Millisecond, true)
	time.Sleep(20 * time.Millisecond)

	if _, ok := s.Get("foo"); ok {
		t.Fatalf("expected key to have expired")
	}
}

func TestEagerExpirationWorkerPurgesKey(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), 10*time.Millisecond, true)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		_, present := s.entries["foo"]
		s.mu.Unlock()
		if !present {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected worker to purge expired key eagerly")
}

func TestPublishWithNoSubscribersReturnsZero(t *testing.T) {
	s := New()
	defer s.Shutdown()

	if n := s.Publish("nobody-home", []byte("hi")); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

func TestPublishFanOutToSubscribers(t *testing.T) {
	s := New()
	defer s.Shutdown()

	sub1 := s.Subscribe("chat")
	sub2 := s.Subscribe("chat")
	defer sub1.Close()
	defer sub2.Close()

	if n := s.Publish("chat", []byte("hello")); n != 2 {
		t.Fatalf("expected 2 subscribers, got %d", n)
	}

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case m := <-sub.C():
			if string(m.Payload) != "hello" {
				t.Fatalf("unexpected payload: %q", m.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected a message to be delivered")
		}
	}
}

func TestSetWithZeroExpireIsImmediatelyExpired(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), 0, true)
	if _, ok := s.Get("foo"); ok {
		t.Fatalf("expected a zero-duration EX/PX to expire immediately, not live forever")
	}
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	s := New()
	defer s.Shutdown()

	s.Set("foo", []byte("bar"), 0, false)
	s.Get("foo")
	s.Get("missing")

	stats := s.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
