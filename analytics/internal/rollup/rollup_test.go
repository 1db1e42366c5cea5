package rollup

import (
	"context"
	"errors"
	"testing"
	"time"

	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/events"
)

type fakeReader struct {
	byType map[events.EventType][]store.AnalyticsRecord
	err    error
}

func (r *fakeReader) AllEventsByType(ctx context.Context, eventType events.EventType, since time.Time, until time.Time) ([]store.AnalyticsRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byType[eventType], nil
}

type fakeWriter struct {
	records []store.SellerDailyRecord
}

func (w *fakeWriter) PutSellerDaily(ctx context.Context, rec store.SellerDailyRecord) error {
	w.records = append(w.records, rec)
	return nil
}

func rec(sellerID string, productID string) store.AnalyticsRecord {
	return store.AnalyticsRecord{SellerID: sellerID, ProductID: productID}
}

func TestRunAggregatesPerSeller(t *testing.T) {
	reader := &fakeReader{byType: map[events.EventType][]store.AnalyticsRecord{
		events.EventTypeProductCreated:  {rec("s1", "p1"), rec("s1", "p2"), rec("s2", "p3")},
		events.EventTypeProductUpdated:  {rec("s1", "p1"), rec("s1", "p1")},
		events.EventTypeLowStockWarning: {rec("s2", "p3")},
	}}
	writer := &fakeWriter{}

	n, err := Run(context.Background(), reader, writer, time.Date(2026, 6, 1, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 || len(writer.records) != 2 {
		t.Fatalf("wrote %d sellers", len(writer.records))
	}

	byID := map[string]store.SellerDailyRecord{}
	for _, r := range writer.records {
		byID[r.SellerID] = r
	}

	s1 := byID["s1"]
	if s1.Created != 2 || s1.Updated != 2 || s1.Deleted != 0 || s1.DistinctProduct != 2 {
		t.Fatalf("s1 = %+v", s1)
	}
	if s1.Day != "2026-06-01" || s1.SK != "daily#2026-06-01" {
		t.Fatalf("s1 keys = %q %q", s1.Day, s1.SK)
	}

	s2 := byID["s2"]
	if s2.Created != 1 || s2.LowStockAlerts != 1 || s2.DistinctProduct != 1 {
		t.Fatalf("s2 = %+v", s2)
	}
}

func TestRunEmptyDay(t *testing.T) {
	writer := &fakeWriter{}
	n, err := Run(context.Background(), &fakeReader{}, writer, time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 || len(writer.records) != 0 {
		t.Fatalf("expected no writes, got %d", len(writer.records))
	}
}

func TestRunPropagatesReadError(t *testing.T) {
	reader := &fakeReader{err: errors.New("dynamo unavailable")}
	if _, err := Run(context.Background(), reader, &fakeWriter{}, time.Now()); err == nil {
		t.Fatal("expected error")
	}
}
