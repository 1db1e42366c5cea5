package projector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/mqx"
)

type fakeStore struct {
	analytics []store.AnalyticsRecord
	logs      []store.EventLogRecord
	failPut   bool
}

func (s *fakeStore) PutAnalytics(ctx context.Context, rec store.AnalyticsRecord) error {
	if s.failPut {
		return errors.New("dynamo unavailable")
	}
	s.analytics = append(s.analytics, rec)
	return nil
}

func (s *fakeStore) PutEventLog(ctx context.Context, rec store.EventLogRecord) error {
	s.logs = append(s.logs, rec)
	return nil
}

type fakeArchiver struct {
	stored []string
	fail   bool
}

func (a *fakeArchiver) Store(ctx context.Context, env events.Envelope, raw []byte) error {
	if a.fail {
		return errors.New("s3 unavailable")
	}
	a.stored = append(a.stored, env.EventID)
	return nil
}

func testProjector(st *fakeStore, ar *fakeArchiver) *Projector {
	return New(st, ar, nil, logx.New("projector-test", "test", "dev", "error"))
}

func encode(t *testing.T, eventType events.EventType, payload events.Payload) []byte {
	t.Helper()
	env, err := events.New(eventType, "core", "", payload)
	if err != nil {
		t.Fatalf("events.New: %v", err)
	}
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return raw
}

func TestHandleProductCreated(t *testing.T) {
	st := &fakeStore{}
	ar := &fakeArchiver{}
	p := testProjector(st, ar)

	raw := encode(t, events.EventTypeProductCreated, events.ProductCreated{
		ID:       "prod-1",
		Seller:   "seller-1",
		Name:     "Widget",
		Price:    19.99,
		Quantity: 40,
		Category: "electronics",
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(st.analytics) != 1 || len(st.logs) != 1 || len(ar.stored) != 1 {
		t.Fatalf("writes = %d analytics, %d logs, %d archived", len(st.analytics), len(st.logs), len(ar.stored))
	}
	rec := st.analytics[0]
	if rec.PK != "seller-1#prod-1" {
		t.Fatalf("PK = %q", rec.PK)
	}
	if rec.Price != 19.99 || rec.Quantity != 40 || rec.Category != "electronics" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.PriceChange != 0 || rec.QuantityChange != 0 {
		t.Fatalf("created event must carry no deltas, record = %+v", rec)
	}
}

func TestHandleUpdateDeltasOnlyForChangedFields(t *testing.T) {
	st := &fakeStore{}
	p := testProjector(st, &fakeArchiver{})

	prevQty := 50
	raw := encode(t, events.EventTypeProductUpdated, events.ProductUpdated{
		ID:               "prod-1",
		Seller:           "seller-1",
		Name:             "Widget",
		Price:            15,
		Quantity:         30,
		PreviousQuantity: &prevQty,
		Changes:          []string{"quantity"},
		PreviousState:    map[string]any{"quantity": 50},
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	rec := st.analytics[0]
	if rec.QuantityChange != -20 {
		t.Fatalf("QuantityChange = %d, want -20", rec.QuantityChange)
	}
	if rec.PriceChange != 0 {
		t.Fatalf("PriceChange = %v, price was not in the change set", rec.PriceChange)
	}
}

func TestHandleUpdatePriceDelta(t *testing.T) {
	st := &fakeStore{}
	p := testProjector(st, &fakeArchiver{})

	raw := encode(t, events.EventTypeProductUpdated, events.ProductUpdated{
		ID:            "prod-1",
		Seller:        "seller-1",
		Name:          "Widget",
		Price:         12.5,
		Quantity:      30,
		Changes:       []string{"price"},
		PreviousState: map[string]any{"price": 10.0},
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := st.analytics[0].PriceChange; got != 2.5 {
		t.Fatalf("PriceChange = %v, want 2.5", got)
	}
}

func TestHandleDeleteLeavesCategoryEmpty(t *testing.T) {
	st := &fakeStore{}
	p := testProjector(st, &fakeArchiver{})

	raw := encode(t, events.EventTypeProductDeleted, events.ProductDeleted{
		ID:     "prod-1",
		Seller: "seller-1",
		Name:   "Widget",
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	rec := st.analytics[0]
	if rec.Category != "" || rec.Price != 0 || rec.Quantity != 0 {
		t.Fatalf("delete must not carry product state, record = %+v", rec)
	}
}

func TestHandleIdempotentOnRedelivery(t *testing.T) {
	st := &fakeStore{}
	p := testProjector(st, &fakeArchiver{})

	raw := encode(t, events.EventTypeProductCreated, events.ProductCreated{
		ID:       "prod-1",
		Seller:   "seller-1",
		Name:     "Widget",
		Quantity: 5,
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("second Handle: %v", err)
	}

	if st.analytics[0].PK != st.analytics[1].PK || st.analytics[0].SK != st.analytics[1].SK {
		t.Fatalf("redelivery must write the same key, got %q/%q and %q/%q",
			st.analytics[0].PK, st.analytics[0].SK, st.analytics[1].PK, st.analytics[1].SK)
	}
}

func TestHandlePoisonMessageIsTerminalAndWritesNothing(t *testing.T) {
	st := &fakeStore{}
	ar := &fakeArchiver{}
	p := testProjector(st, ar)

	err := p.Handle(context.Background(), kafka.Message{Value: []byte(`{broken`)})
	if err == nil {
		t.Fatal("expected error")
	}
	if !mqx.IsTerminal(err) {
		t.Fatalf("poison message must be terminal, got %v", err)
	}
	if len(st.analytics) != 0 || len(st.logs) != 0 || len(ar.stored) != 0 {
		t.Fatal("poison message must leave no writes")
	}
}

func TestHandleUnknownEventTypeIsTerminal(t *testing.T) {
	p := testProjector(&fakeStore{}, &fakeArchiver{})

	raw := []byte(`{"eventId":"e1","eventType":"ProductArchived","timestamp":"2026-01-02T03:04:05Z","version":"1.0","source":"core","data":{}}`)
	err := p.Handle(context.Background(), kafka.Message{Value: raw})
	if !mqx.IsTerminal(err) {
		t.Fatalf("unknown event type must be terminal, got %v", err)
	}
}

func TestHandleArchiveFailureIsTransient(t *testing.T) {
	st := &fakeStore{}
	ar := &fakeArchiver{fail: true}
	p := testProjector(st, ar)

	raw := encode(t, events.EventTypeProductCreated, events.ProductCreated{
		ID:     "prod-1",
		Seller: "seller-1",
		Name:   "Widget",
	})

	err := p.Handle(context.Background(), kafka.Message{Value: raw})
	if err == nil {
		t.Fatal("archive failure must fail the projection")
	}
	if mqx.IsTerminal(err) {
		t.Fatalf("archive failure must be retried, got terminal %v", err)
	}
}

func TestHandleStoreFailureIsTransient(t *testing.T) {
	st := &fakeStore{failPut: true}
	p := testProjector(st, &fakeArchiver{})

	raw := encode(t, events.EventTypeProductCreated, events.ProductCreated{
		ID:     "prod-1",
		Seller: "seller-1",
	})

	err := p.Handle(context.Background(), kafka.Message{Value: raw})
	if err == nil || mqx.IsTerminal(err) {
		t.Fatalf("storage failure must be transient, got %v", err)
	}
}

func TestHandleLowStockWarning(t *testing.T) {
	st := &fakeStore{}
	p := testProjector(st, &fakeArchiver{})

	raw := encode(t, events.EventTypeLowStockWarning, events.LowStockWarning{
		ID:              "prod-1",
		Seller:          "seller-1",
		Name:            "Widget",
		CurrentQuantity: 4,
		Threshold:       events.LowStockThreshold,
		Category:        "books",
		TriggeredAt:     time.Now().UTC().Format(time.RFC3339Nano),
	})

	if err := p.Handle(context.Background(), kafka.Message{Value: raw}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	rec := st.analytics[0]
	if rec.Quantity != 4 || rec.Category != "books" {
		t.Fatalf("record = %+v", rec)
	}
}
