package events

import (
	"errors"
	"testing"
	"time"
)

func TestNewEnvelope(t *testing.T) {
	payload := ProductCreated{
		ID:       "prod-1",
		Seller:   "seller-1",
		Name:     "Widget",
		Price:    19.99,
		Quantity: 5,
		Category: "electronics",
	}
	env, err := New(EventTypeProductCreated, "core", "corr-1", payload)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if env.EventID == "" {
		t.Fatal("EventID must be set")
	}
	if env.Version != Version {
		t.Fatalf("Version = %q", env.Version)
	}
	if env.CorrelationID != "corr-1" {
		t.Fatalf("CorrelationID = %q", env.CorrelationID)
	}
	if env.Timestamp.Location() != time.UTC {
		t.Fatal("Timestamp must be UTC")
	}
	h := env.Headers()
	if h["eventType"] != "ProductCreated" || h["version"] != Version {
		t.Fatalf("Headers = %v", h)
	}
}

func TestNewRejectsMissingIdentity(t *testing.T) {
	_, err := New(EventTypeProductCreated, "core", "", ProductCreated{Seller: "seller-1"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if ve.Field != "productId" {
		t.Fatalf("Field = %q", ve.Field)
	}
}

func TestParseRoundTrip(t *testing.T) {
	prev := 25
	payload := ProductUpdated{
		ID:               "prod-2",
		Seller:           "seller-2",
		Name:             "Gadget",
		Price:            5,
		Quantity:         8,
		PreviousQuantity: &prev,
		Changes:          []string{"quantity", "price"},
		PreviousState:    map[string]any{"quantity": 25, "price": 7.5},
	}
	env, err := New(EventTypeProductUpdated, "core", "", payload)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, p, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.EventID != env.EventID {
		t.Fatalf("EventID = %q, want %q", got.EventID, env.EventID)
	}
	upd, ok := p.(*ProductUpdated)
	if !ok {
		t.Fatalf("payload type = %T", p)
	}
	if upd.PreviousQuantity == nil || *upd.PreviousQuantity != 25 {
		t.Fatalf("PreviousQuantity = %v", upd.PreviousQuantity)
	}
	if !upd.Changed("quantity") || !upd.Changed("price") || upd.Changed("name") {
		t.Fatalf("Changes = %v", upd.Changes)
	}
	if upd.PreviousFloat("price") != 7.5 {
		t.Fatalf("PreviousFloat(price) = %v", upd.PreviousFloat("price"))
	}
	if upd.PreviousFloat("name") != 0 {
		t.Fatalf("PreviousFloat on missing field must be 0")
	}
}

func TestParseMalformedJSONIsTerminal(t *testing.T) {
	_, _, err := Parse([]byte(`{not json`))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
	if !pe.Terminal() {
		t.Fatal("ParseError must be terminal")
	}
}

func TestParseUnknownEventType(t *testing.T) {
	raw := []byte(`{"eventId":"e1","eventType":"ProductArchived","timestamp":"2026-01-02T03:04:05Z","version":"1.0","source":"core","data":{}}`)
	_, _, err := Parse(raw)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("want ErrUnknownEventType, got %v", err)
	}
	if !ErrUnknownEventType.Terminal() {
		t.Fatal("unknown event type must be terminal")
	}
}

func TestParseMissingEventID(t *testing.T) {
	raw := []byte(`{"eventType":"ProductCreated","version":"1.0","data":{"productId":"p","sellerId":"s"}}`)
	_, _, err := Parse(raw)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if ve.Field != "eventId" {
		t.Fatalf("Field = %q", ve.Field)
	}
}

func TestParseInvalidPayload(t *testing.T) {
	raw := []byte(`{"eventId":"e1","eventType":"ProductDeleted","version":"1.0","data":{"productId":"p"}}`)
	_, _, err := Parse(raw)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
	if ve.Field != "sellerId" {
		t.Fatalf("Field = %q", ve.Field)
	}
}

func TestStorageKeys(t *testing.T) {
	if got := StorageKey("seller-1", "prod-1"); got != "seller-1#prod-1" {
		t.Fatalf("StorageKey = %q", got)
	}
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	want := "2026-03-04T05:06:07Z#LowStockWarning"
	if got := SortKey(ts, EventTypeLowStockWarning); got != want {
		t.Fatalf("SortKey = %q, want %q", got, want)
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, et := range []EventType{EventTypeProductCreated, EventTypeProductUpdated, EventTypeProductDeleted, EventTypeLowStockWarning} {
		if !et.Valid() {
			t.Fatalf("%s should be valid", et)
		}
	}
	if EventType("ProductArchived").Valid() {
		t.Fatal("unexpected valid event type")
	}
}
