package ws

import (
	"context"
	"testing"

	"product-catalog-platform/shared/logx"
)

func testHub() *Hub {
	return NewHub(logx.New("ws-test", "test", "dev", "error"))
}

func newTestClient(h *Hub) *Client {
	c := &Client{hub: h, send: make(chan []byte, sendBufferSize)}
	h.register(c)
	return c
}

func TestBroadcastReachesOnlySubscribedClients(t *testing.T) {
	h := testHub()
	a := newTestClient(h)
	b := newTestClient(h)

	h.subscribe(a, "seller-1")
	h.subscribe(b, "seller-2")

	delivered := h.Broadcast(context.Background(), "seller-1", []byte("warn"))
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	select {
	case msg := <-a.send:
		if string(msg) != "warn" {
			t.Fatalf("message = %q", msg)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}
	select {
	case <-b.send:
		t.Fatal("client subscribed to another seller received the message")
	default:
	}
}

func TestBroadcastMultipleSubscribers(t *testing.T) {
	h := testHub()
	a := newTestClient(h)
	b := newTestClient(h)

	h.subscribe(a, "seller-1")
	h.subscribe(b, "seller-1")

	if delivered := h.Broadcast(context.Background(), "seller-1", []byte("warn")); delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}
}

func TestClientMaySubscribeToMultipleSellers(t *testing.T) {
	h := testHub()
	a := newTestClient(h)

	h.subscribe(a, "seller-1")
	h.subscribe(a, "seller-2")

	if h.Broadcast(context.Background(), "seller-1", []byte("x")) != 1 {
		t.Fatal("seller-1 broadcast missed")
	}
	if h.Broadcast(context.Background(), "seller-2", []byte("y")) != 1 {
		t.Fatal("seller-2 broadcast missed")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := testHub()
	a := newTestClient(h)

	h.subscribe(a, "seller-1")
	h.unsubscribe(a, "seller-1")

	if delivered := h.Broadcast(context.Background(), "seller-1", []byte("warn")); delivered != 0 {
		t.Fatalf("delivered = %d, want 0", delivered)
	}
	if h.Subscribers("seller-1") != 0 {
		t.Fatal("empty seller set must be pruned")
	}
}

func TestUnregisterPrunesAllSubscriptions(t *testing.T) {
	h := testHub()
	a := newTestClient(h)
	b := newTestClient(h)

	h.subscribe(a, "seller-1")
	h.subscribe(a, "seller-2")
	h.subscribe(b, "seller-1")

	h.unregister(a)

	if h.Connections() != 1 {
		t.Fatalf("connections = %d, want 1", h.Connections())
	}
	if h.Subscribers("seller-1") != 1 {
		t.Fatalf("seller-1 subscribers = %d, want 1", h.Subscribers("seller-1"))
	}
	if h.Subscribers("seller-2") != 0 {
		t.Fatal("seller-2 must have no subscribers after unregister")
	}

	if delivered := h.Broadcast(context.Background(), "seller-1", []byte("warn")); delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
}

func TestSubscribeAfterUnregisterIsNoop(t *testing.T) {
	h := testHub()
	a := newTestClient(h)
	h.unregister(a)

	h.subscribe(a, "seller-1")
	if h.Subscribers("seller-1") != 0 {
		t.Fatal("unregistered client must not be subscribable")
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := testHub()
	a := newTestClient(h)
	h.unregister(a)

	if _, ok := <-a.send; ok {
		t.Fatal("send channel must be closed after unregister")
	}

	// A second unregister must not close the channel again.
	h.unregister(a)
}

func TestBroadcastDuringUnregisterDoesNotPanic(t *testing.T) {
	h := testHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c := newTestClient(h)
			h.subscribe(c, "seller-1")
			h.unregister(c)
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
			h.Broadcast(context.Background(), "seller-1", []byte("warn"))
		}
	}
}

func TestBroadcastDropsOnFullBuffer(t *testing.T) {
	h := testHub()
	a := &Client{hub: h, send: make(chan []byte, 1)}
	h.register(a)
	h.subscribe(a, "seller-1")

	if h.Broadcast(context.Background(), "seller-1", []byte("one")) != 1 {
		t.Fatal("first message must be delivered")
	}
	if h.Broadcast(context.Background(), "seller-1", []byte("two")) != 0 {
		t.Fatal("message to a full buffer must be dropped, not block")
	}
}
