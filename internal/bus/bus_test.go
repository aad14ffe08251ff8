package bus

import (
	"testing"
	"time"
)

func TestBus_SubscribeAndSend_DeliversMessage(t *testing.T) {
	b := New()

	ch := make(chan Message, 1)
	b.Subscribe("fetcher", ch)

	msg := Message{Type: "fetch_forecast", Payload: map[string]any{"id": "t1"}}
	b.Send("fetcher", msg)

	select {
	case got := <-ch:
		if got.Type != "fetch_forecast" {
			t.Fatalf("unexpected type: %s", got.Type)
		}
		if got.Payload["id"].(string) != "t1" {
			t.Fatalf("unexpected payload: %+v", got.Payload)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting message")
	}
}

func TestBus_SendToUnknown_NoPanicOrBlock(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		// No subscriber registered for "nobody"; should safely no-op
		b.Send("nobody", Message{Type: "t"})
		close(done)
	}()

	select {
	case <-done:
		// ok
	case <-time.After(500 * time.Millisecond):
		t.Fatal("send to unknown subscriber blocked")
	}
}

func TestBus_SharedChannel_ActsAsPool(t *testing.T) {
	b := New()
	ch := make(chan Message, 4)
	b.Subscribe("fetcher", ch)

	for i := 0; i < 4; i++ {
		b.Send("fetcher", Message{Type: "fetch_forecast"})
	}
	if len(ch) != 4 {
		t.Fatalf("expected 4 buffered messages, got %d", len(ch))
	}
}
