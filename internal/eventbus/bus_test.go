package eventbus

import (
	"sync"
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypePurchaseRecorded, Data: PurchaseEvent{OrderID: "1"}})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != TypePurchaseRecorded || e.Time.IsZero() {
				t.Fatalf("event = %+v", e)
			}
			if p, ok := e.Data.(PurchaseEvent); !ok || p.OrderID != "1" {
				t.Fatalf("data = %#v", e.Data)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeConfigReloaded})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
	if n := len(ch); n != 1 {
		t.Fatalf("buffered events = %d, want 1", n)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatalf("channel still open after unsubscribe")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		_, u := b.Subscribe(1)
		wg.Add(2)
		go func() { defer wg.Done(); b.Publish(Event{Type: TypeNotifierSent}) }()
		go func() { defer wg.Done(); u() }()
	}
	wg.Wait()
}
