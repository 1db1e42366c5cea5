// Package projector applies product events to the analytics store. The
// handler is idempotent: records are keyed by event identity, so a
// redelivered message overwrites its own previous write.
package projector

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/segmentio/kafka-go"

	"product-catalog-platform/analytics/internal/store"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/metricsx"
)

// EventStore is the slice of the analytics store the projector writes to.
type EventStore interface {
	PutAnalytics(ctx context.Context, rec store.AnalyticsRecord) error
	PutEventLog(ctx context.Context, rec store.EventLogRecord) error
}

// Archiver persists the raw envelope. Its failure fails the projection:
// an event is not processed until its archive copies exist.
type Archiver interface {
	Store(ctx context.Context, env events.Envelope, raw []byte) error
}

// TimeSeries receives best-effort operational points; failures are counted
// and dropped, never retried.
type TimeSeries interface {
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]any, ts time.Time) error
}

type Projector struct {
	store      EventStore
	archiver   Archiver
	timeSeries TimeSeries
	logger     logx.Logger
}

func New(st EventStore, ar Archiver, ts TimeSeries, logger logx.Logger) *Projector {
	return &Projector{store: st, archiver: ar, timeSeries: ts, logger: logger}
}

// Handle is the consumer handler for the product-events topic. Terminal
// errors (malformed, invalid, unknown kind) are returned as such so the
// runtime skips the message; storage and archive errors are transient and
// trigger redelivery of the same message.
func (p *Projector) Handle(ctx context.Context, msg kafka.Message) error {
	env, payload, err := events.Parse(msg.Value)
	if err != nil {
		return err
	}

	rec := store.NewAnalyticsRecord(env, payload.SellerID(), payload.ProductID())
	enrich(&rec, payload)

	logRec := store.NewEventLogRecord(env, payload.SellerID(), payload.ProductID(), msg.Value)
	if err := p.store.PutEventLog(ctx, logRec); err != nil {
		return fmt.Errorf("event log write: %w", err)
	}
	if err := p.store.PutAnalytics(ctx, rec); err != nil {
		return fmt.Errorf("analytics write: %w", err)
	}
	if err := p.archiver.Store(ctx, env, msg.Value); err != nil {
		return err
	}

	p.writePoint(ctx, env, rec)

	p.logger.Info(ctx, "event_projected", "event projected",
		slog.String("event_id", env.EventID),
		slog.String("event_type", string(env.EventType)),
		slog.String("product_id", payload.ProductID()),
		slog.String("seller_id", payload.SellerID()),
	)
	return nil
}

// enrich fills the type-specific fields. Deltas are computed only for
// fields the event reports as changed; an update with no previous snapshot
// contributes zero deltas.
func enrich(rec *store.AnalyticsRecord, payload events.Payload) {
	switch t := payload.(type) {
	case *events.ProductCreated:
		rec.ProductName = t.Name
		rec.Category = t.Category
		rec.Price = t.Price
		rec.Quantity = t.Quantity
	case *events.ProductUpdated:
		rec.ProductName = t.Name
		rec.Category = t.Category
		rec.Price = t.Price
		rec.Quantity = t.Quantity
		if t.Changed("price") {
			rec.PriceChange = t.Price - t.PreviousFloat("price")
		}
		if t.Changed("quantity") {
			if t.PreviousQuantity != nil {
				rec.QuantityChange = t.Quantity - *t.PreviousQuantity
			} else {
				rec.QuantityChange = t.Quantity - int(t.PreviousFloat("quantity"))
			}
		}
	case *events.ProductDeleted:
		rec.ProductName = t.Name
	case *events.LowStockWarning:
		rec.ProductName = t.Name
		rec.Category = t.Category
		rec.Quantity = t.CurrentQuantity
	}
}

func (p *Projector) writePoint(ctx context.Context, env events.Envelope, rec store.AnalyticsRecord) {
	if p.timeSeries == nil {
		return
	}
	err := p.timeSeries.WritePoint(ctx, "product_events",
		map[string]string{
			"event_type": rec.EventType,
			"category":   rec.Category,
		},
		map[string]any{
			"price":           rec.Price,
			"quantity":        rec.Quantity,
			"price_change":    rec.PriceChange,
			"quantity_change": rec.QuantityChange,
		},
		env.Timestamp,
	)
	if err != nil {
		metricsx.IncInfluxWriteFailure()
		p.logger.Warn(ctx, "influx_write_failed", "time series write failed",
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()),
		)
	}
}
