package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"product-catalog-platform/core/internal/products"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/logx"
)

type published struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	published []published
	failTopic string
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	if p.failTopic != "" && topic == p.failTopic {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, published{topic: topic, key: string(key), value: value, headers: headers})
	return nil
}

func testEmitter(p Publisher) *Emitter {
	return New(p, "core", logx.New("emitter-test", "test", "dev", "error"))
}

func sampleProduct(qty int) products.Product {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return products.Product{
		ID:        "prod-1",
		SellerID:  "seller-1",
		Name:      "Widget",
		Price:     19.99,
		Quantity:  qty,
		Category:  "electronics",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestShouldWarnLowStockBoundaries(t *testing.T) {
	cases := []struct {
		quantity int
		want     bool
	}{
		{9, true},
		{10, true},
		{11, false},
		{0, true},
	}
	for _, tc := range cases {
		if got := ShouldWarnLowStock(tc.quantity); got != tc.want {
			t.Fatalf("ShouldWarnLowStock(%d) = %v, want %v", tc.quantity, got, tc.want)
		}
	}
}

func TestDiff(t *testing.T) {
	prev := sampleProduct(25)
	next := prev
	next.Price = 17.5
	next.Quantity = 8
	next.UpdatedAt = prev.UpdatedAt.Add(time.Minute)

	changes, previous := Diff(prev, next)
	if len(changes) != 2 {
		t.Fatalf("changes = %v", changes)
	}
	if previous["price"] != 19.99 {
		t.Fatalf("previous price = %v", previous["price"])
	}
	if previous["quantity"] != 25 {
		t.Fatalf("previous quantity = %v", previous["quantity"])
	}
	if _, ok := previous["name"]; ok {
		t.Fatal("unchanged field must not be in previous state")
	}
}

func TestDiffNoChanges(t *testing.T) {
	p := sampleProduct(25)
	changes, previous := Diff(p, p)
	if len(changes) != 0 {
		t.Fatalf("changes = %v", changes)
	}
	if previous != nil {
		t.Fatalf("previous = %v", previous)
	}
}

func TestProductUpdatedDerivesLowStockWarning(t *testing.T) {
	pub := &fakePublisher{}
	em := testEmitter(pub)

	prev := sampleProduct(25)
	next := prev
	next.Quantity = 9

	em.ProductUpdated(context.Background(), prev, next)

	if len(pub.published) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.published))
	}
	if pub.published[0].topic != events.TopicProductEvents {
		t.Fatalf("first topic = %q", pub.published[0].topic)
	}
	if pub.published[1].topic != events.TopicNotifications {
		t.Fatalf("second topic = %q", pub.published[1].topic)
	}

	_, payload, err := events.Parse(pub.published[1].value)
	if err != nil {
		t.Fatalf("Parse warning: %v", err)
	}
	warn, ok := payload.(*events.LowStockWarning)
	if !ok {
		t.Fatalf("payload type = %T", payload)
	}
	if warn.CurrentQuantity != 9 || warn.Threshold != events.LowStockThreshold {
		t.Fatalf("warning = %+v", warn)
	}
}

func TestProductUpdatedAboveThresholdNoWarning(t *testing.T) {
	pub := &fakePublisher{}
	em := testEmitter(pub)

	prev := sampleProduct(25)
	next := prev
	next.Quantity = 11

	em.ProductUpdated(context.Background(), prev, next)

	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.published))
	}
}

func TestProductUpdatedCarriesPreviousQuantity(t *testing.T) {
	pub := &fakePublisher{}
	em := testEmitter(pub)

	prev := sampleProduct(25)
	next := prev
	next.Quantity = 12

	em.ProductUpdated(context.Background(), prev, next)

	_, payload, err := events.Parse(pub.published[0].value)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	upd := payload.(*events.ProductUpdated)
	if upd.PreviousQuantity == nil || *upd.PreviousQuantity != 25 {
		t.Fatalf("PreviousQuantity = %v", upd.PreviousQuantity)
	}
	if !upd.Changed("quantity") {
		t.Fatalf("Changes = %v", upd.Changes)
	}
}

func TestEventsKeyedByProductID(t *testing.T) {
	pub := &fakePublisher{}
	em := testEmitter(pub)

	em.ProductCreated(context.Background(), sampleProduct(5))

	if len(pub.published) != 1 {
		t.Fatalf("published %d events", len(pub.published))
	}
	if pub.published[0].key != "prod-1" {
		t.Fatalf("key = %q", pub.published[0].key)
	}
	if pub.published[0].headers["eventType"] != "ProductCreated" {
		t.Fatalf("headers = %v", pub.published[0].headers)
	}
}

func TestWarningFailureDoesNotUndoUpdate(t *testing.T) {
	pub := &fakePublisher{failTopic: events.TopicNotifications}
	em := testEmitter(pub)

	prev := sampleProduct(25)
	next := prev
	next.Quantity = 3

	em.ProductUpdated(context.Background(), prev, next)

	if len(pub.published) != 1 {
		t.Fatalf("published %d events, want the update alone", len(pub.published))
	}
	if pub.published[0].topic != events.TopicProductEvents {
		t.Fatalf("topic = %q", pub.published[0].topic)
	}
}
