package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"product-catalog-platform/shared/events"
)

func TestNotificationFrame(t *testing.T) {
	env := events.Envelope{
		EventID:   "evt-1",
		EventType: events.EventTypeLowStockWarning,
		Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	warn := &events.LowStockWarning{
		ID:              "prod-1",
		Seller:          "seller-1",
		Name:            "Blue Widget",
		CurrentQuantity: 3,
		Threshold:       10,
		Category:        "electronics",
		TriggeredAt:     "2026-03-04T05:06:07Z",
	}

	var frame serverMessage
	if err := json.Unmarshal(Notification(env, warn), &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != "notification" {
		t.Fatalf("frame type = %q", frame.Type)
	}
	data := frame.Data
	if data == nil {
		t.Fatal("frame has no data")
	}
	if data.ID != "evt-1" || data.Type != "low_stock_warning" {
		t.Fatalf("data identity = %q/%q", data.ID, data.Type)
	}
	if data.ProductID != "prod-1" || data.SellerID != "seller-1" || data.ProductName != "Blue Widget" {
		t.Fatalf("data product = %+v", data)
	}
	if data.CurrentQuantity != 3 || data.Threshold != 10 || data.Category != "electronics" {
		t.Fatalf("data stock = %+v", data)
	}
	if data.Timestamp != "2026-03-04T05:06:07Z" {
		t.Fatalf("timestamp = %q", data.Timestamp)
	}
	if !strings.Contains(data.Message, "Blue Widget") || !strings.Contains(data.Message, "3") {
		t.Fatalf("message = %q", data.Message)
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	if got := bearerToken(r); got != "abc.def.ghi" {
		t.Fatalf("bearerToken = %q", got)
	}

	r = httptest.NewRequest("GET", "/ws?token=xyz", nil)
	if got := bearerToken(r); got != "xyz" {
		t.Fatalf("bearerToken from query = %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	if got := bearerToken(r); got != "" {
		t.Fatalf("bearerToken empty request = %q", got)
	}
}

func TestNotificationFallsBackToEnvelopeTimestamp(t *testing.T) {
	env := events.Envelope{
		EventID:   "evt-2",
		Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	warn := &events.LowStockWarning{ID: "prod-1", Seller: "seller-1"}

	var frame serverMessage
	if err := json.Unmarshal(Notification(env, warn), &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Data.Timestamp != "2026-03-04T05:06:07Z" {
		t.Fatalf("timestamp = %q", frame.Data.Timestamp)
	}
}
