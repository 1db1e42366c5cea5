// Package rollup computes per-seller daily aggregates from the projected
// analytics records. Roll-ups are rebuilt in full for a day on every run,
// so reruns converge instead of double counting.
package rollup

import (
	"context"
	"fmt"
	"time"

	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/events"
)

type EventReader interface {
	AllEventsByType(ctx context.Context, eventType events.EventType, since time.Time, until time.Time) ([]store.AnalyticsRecord, error)
}

type DailyWriter interface {
	PutSellerDaily(ctx context.Context, rec store.SellerDailyRecord) error
}

// Run rebuilds every seller's roll-up for the UTC day containing t.
func Run(ctx context.Context, reader EventReader, writer DailyWriter, t time.Time) (int, error) {
	day := t.UTC().Truncate(24 * time.Hour)
	since := day
	until := day.Add(24*time.Hour - time.Nanosecond)

	bySeller := make(map[string]*store.SellerDailyRecord)
	productsSeen := make(map[string]map[string]bool)

	get := func(sellerID string) *store.SellerDailyRecord {
		rec, ok := bySeller[sellerID]
		if !ok {
			r := store.NewSellerDailyRecord(sellerID, day)
			rec = &r
			bySeller[sellerID] = rec
			productsSeen[sellerID] = make(map[string]bool)
		}
		return rec
	}

	for _, eventType := range []events.EventType{
		events.EventTypeProductCreated,
		events.EventTypeProductUpdated,
		events.EventTypeProductDeleted,
		events.EventTypeLowStockWarning,
	} {
		records, err := reader.AllEventsByType(ctx, eventType, since, until)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", eventType, err)
		}
		for _, rec := range records {
			daily := get(rec.SellerID)
			switch eventType {
			case events.EventTypeProductCreated:
				daily.Created++
			case events.EventTypeProductUpdated:
				daily.Updated++
			case events.EventTypeProductDeleted:
				daily.Deleted++
			case events.EventTypeLowStockWarning:
				daily.LowStockAlerts++
			}
			productsSeen[rec.SellerID][rec.ProductID] = true
		}
	}

	for sellerID, rec := range bySeller {
		rec.DistinctProduct = len(productsSeen[sellerID])
		if err := writer.PutSellerDaily(ctx, *rec); err != nil {
			return 0, fmt.Errorf("write daily for %s: %w", sellerID, err)
		}
	}
	return len(bySeller), nil
}
