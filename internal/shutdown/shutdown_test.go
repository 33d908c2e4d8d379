package shutdown

import (
	"testing"
	"time"
)

func TestTriggerIsIdempotent(t *testing.T) {
	b := New()
	b.Trigger()
	b.Trigger()
	if !b.IsShutdown() {
		t.Fatalf("expected IsShutdown to report true")
	}
}

func TestSubscriptionObservesTrigger(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	defer sub.Release()

	select {
	case <-sub.Done():
		t.Fatalf("did not expect shutdown signal before Trigger")
	default:
	}

	b.Trigger()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected subscription to observe shutdown")
	}
}

func TestWaitBlocksUntilAllReleased(t *testing.T) {
	b := New()
	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	b.Trigger()

	done := make(chan struct{})
	go func() {
		b.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned before all subscriptions released")
	case <-time.After(50 * time.Millisecond):
	}

	sub1.Release()
	sub2.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Wait to return after all releases")
	}
}
