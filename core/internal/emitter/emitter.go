// Package emitter turns product state transitions into published events.
// Publishing is best effort with respect to the triggering request: the
// write has already committed, so a bus failure is logged and surfaced to
// operators but never rolls back the API response.
package emitter

import (
	"context"
	"time"

	"log/slog"

	"product-catalog-platform/core/internal/products"
	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/httpx"
	"product-catalog-platform/shared/logx"
)

// Publisher is the subset of the Kafka producer the emitter needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type Emitter struct {
	publisher Publisher
	source    string
	logger    logx.Logger
}

func New(publisher Publisher, source string, logger logx.Logger) *Emitter {
	return &Emitter{publisher: publisher, source: source, logger: logger}
}

func (e *Emitter) ProductCreated(ctx context.Context, p products.Product) {
	payload := events.ProductCreated{
		ID:          p.ID,
		Seller:      p.SellerID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	e.emit(ctx, events.TopicProductEvents, events.EventTypeProductCreated, payload)
}

// ProductUpdated emits the update with its change set and, when the new
// quantity crossed into low stock, derives a LowStockWarning on the
// notifications topic. The warning is independent: its failure does not
// undo the update event.
func (e *Emitter) ProductUpdated(ctx context.Context, prev products.Product, p products.Product) {
	changes, previousState := Diff(prev, p)
	prevQty := prev.Quantity
	payload := events.ProductUpdated{
		ID:               p.ID,
		Seller:           p.SellerID,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		Quantity:         p.Quantity,
		Category:         p.Category,
		UpdatedAt:        p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		PreviousQuantity: &prevQty,
		Changes:          changes,
		PreviousState:    previousState,
	}
	e.emit(ctx, events.TopicProductEvents, events.EventTypeProductUpdated, payload)

	if ShouldWarnLowStock(p.Quantity) {
		e.LowStock(ctx, p)
	}
}

func (e *Emitter) ProductDeleted(ctx context.Context, p products.Product, reason string) {
	payload := events.ProductDeleted{
		ID:        p.ID,
		Seller:    p.SellerID,
		Name:      p.Name,
		DeletedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Reason:    reason,
	}
	e.emit(ctx, events.TopicProductEvents, events.EventTypeProductDeleted, payload)
}

func (e *Emitter) LowStock(ctx context.Context, p products.Product) {
	payload := events.LowStockWarning{
		ID:              p.ID,
		Seller:          p.SellerID,
		Name:            p.Name,
		CurrentQuantity: p.Quantity,
		Threshold:       events.LowStockThreshold,
		Category:        p.Category,
		TriggeredAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	e.emit(ctx, events.TopicNotifications, events.EventTypeLowStockWarning, payload)
}

// ShouldWarnLowStock reports whether a quantity is at or below the warning
// threshold.
func ShouldWarnLowStock(quantity int) bool {
	return quantity <= events.LowStockThreshold
}

// Diff computes the changed field names and a snapshot of their previous
// values. Timestamps are excluded; they change on every update.
func Diff(prev products.Product, next products.Product) ([]string, map[string]any) {
	changes := make([]string, 0, 5)
	previous := make(map[string]any)

	if prev.Name != next.Name {
		changes = append(changes, "name")
		previous["name"] = prev.Name
	}
	if prev.Description != next.Description {
		changes = append(changes, "description")
		previous["description"] = prev.Description
	}
	if prev.Price != next.Price {
		changes = append(changes, "price")
		previous["price"] = prev.Price
	}
	if prev.Quantity != next.Quantity {
		changes = append(changes, "quantity")
		previous["quantity"] = prev.Quantity
	}
	if prev.Category != next.Category {
		changes = append(changes, "category")
		previous["category"] = prev.Category
	}

	if len(previous) == 0 {
		previous = nil
	}
	return changes, previous
}

func (e *Emitter) emit(ctx context.Context, topic string, eventType events.EventType, payload events.Payload) {
	env, err := events.New(eventType, e.source, httpx.RequestIDFromContext(ctx), payload)
	if err != nil {
		e.logger.Error(ctx, "event_build_failed", "failed to build event",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
		return
	}
	value, err := env.Encode()
	if err != nil {
		e.logger.Error(ctx, "event_encode_failed", "failed to encode event",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
		return
	}

	// Key by product id: every event for one product rides one partition.
	if err := e.publisher.Publish(ctx, topic, []byte(payload.ProductID()), value, env.Headers()); err != nil {
		e.logger.Error(ctx, "event_publish_failed", "failed to publish event",
			slog.String("error_code", "UNAVAILABLE"),
			slog.String("topic", topic),
			slog.String("event_type", string(eventType)),
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.logger.Info(ctx, "event_published", "event published",
		slog.String("topic", topic),
		slog.String("event_type", string(eventType)),
		slog.String("event_id", env.EventID),
		slog.String("product_id", payload.ProductID()),
	)
}
