// Package events defines the wire contract shared by every service: the
// event envelope, the closed set of event kinds, and their payloads.
// Envelopes are immutable once built; downstream services key all storage
// off StorageKey(sellerID, productID).
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TopicProductEvents = "product-events"
	TopicNotifications = "notifications"
)

const (
	// Version is the event schema version carried on every envelope. It is
	// opaque to consumers and must be propagated unchanged.
	Version = "1.0"

	// LowStockThreshold is the quantity at or below which a ProductUpdated
	// derives a LowStockWarning. Fixed for now; a per-seller value is a
	// likely future configuration point.
	LowStockThreshold = 10
)

type EventType string

const (
	EventTypeProductCreated  EventType = "ProductCreated"
	EventTypeProductUpdated  EventType = "ProductUpdated"
	EventTypeProductDeleted  EventType = "ProductDeleted"
	EventTypeLowStockWarning EventType = "LowStockWarning"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeProductCreated, EventTypeProductUpdated, EventTypeProductDeleted, EventTypeLowStockWarning:
		return true
	}
	return false
}

// Envelope is the transport-level wrapper for every domain event. EventID is
// the idempotency key downstream; CorrelationID is empty for events not tied
// to an originating request.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     EventType       `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       string          `json:"version"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Headers returns the transport header metadata duplicated alongside the
// body so brokers and tooling can filter without full deserialization.
func (e Envelope) Headers() map[string]string {
	return map[string]string{
		"eventType": string(e.EventType),
		"version":   e.Version,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Payload is implemented by every event kind. ProductID and SellerID are
// present on all variants; together they form the downstream storage key.
type Payload interface {
	ProductID() string
	SellerID() string
	Validate() error
}

type ProductCreated struct {
	ID          string  `json:"productId"`
	Seller      string  `json:"sellerId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category"`
	CreatedAt   string  `json:"createdAt"`
}

func (p ProductCreated) ProductID() string { return p.ID }
func (p ProductCreated) SellerID() string  { return p.Seller }

func (p ProductCreated) Validate() error {
	return requireIdentity(p.ID, p.Seller)
}

type ProductUpdated struct {
	ID          string  `json:"productId"`
	Seller      string  `json:"sellerId"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Category    string  `json:"category"`
	UpdatedAt   string  `json:"updatedAt"`

	PreviousQuantity *int `json:"previousQuantity,omitempty"`

	// Changes lists the fields whose value differs from the previous state;
	// PreviousState holds the old values of exactly those fields. Both are
	// empty when the producer had no previous snapshot.
	Changes       []string       `json:"changes"`
	PreviousState map[string]any `json:"previousState,omitempty"`
}

func (p ProductUpdated) ProductID() string { return p.ID }
func (p ProductUpdated) SellerID() string  { return p.Seller }

func (p ProductUpdated) Validate() error {
	return requireIdentity(p.ID, p.Seller)
}

// Changed reports whether the named field is in the change set.
func (p ProductUpdated) Changed(field string) bool {
	for _, f := range p.Changes {
		if f == field {
			return true
		}
	}
	return false
}

// PreviousFloat returns the previous value of a numeric field, or 0 when no
// prior value is known, so deltas degrade to the new value minus zero.
func (p ProductUpdated) PreviousFloat(field string) float64 {
	v, ok := p.PreviousState[field]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

type ProductDeleted struct {
	ID        string `json:"productId"`
	Seller    string `json:"sellerId"`
	Name      string `json:"name"`
	DeletedAt string `json:"deletedAt"`
	Reason    string `json:"reason,omitempty"`
}

func (p ProductDeleted) ProductID() string { return p.ID }
func (p ProductDeleted) SellerID() string  { return p.Seller }

func (p ProductDeleted) Validate() error {
	return requireIdentity(p.ID, p.Seller)
}

type LowStockWarning struct {
	ID              string `json:"productId"`
	Seller          string `json:"sellerId"`
	Name            string `json:"name"`
	CurrentQuantity int    `json:"currentQuantity"`
	Threshold       int    `json:"threshold"`
	Category        string `json:"category"`
	TriggeredAt     string `json:"triggeredAt"`
}

func (p LowStockWarning) ProductID() string { return p.ID }
func (p LowStockWarning) SellerID() string  { return p.Seller }

func (p LowStockWarning) Validate() error {
	return requireIdentity(p.ID, p.Seller)
}

// New builds an envelope around a payload with a fresh event id. The
// timestamp is always UTC.
func New(eventType EventType, source string, correlationID string, payload Payload) (Envelope, error) {
	if err := payload.Validate(); err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Version:       Version,
		Source:        source,
		CorrelationID: correlationID,
		Data:          data,
	}, nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// ErrUnknownEventType marks an event kind outside the closed enumeration.
// Consumers log and acknowledge such messages (forward-compatible skip).
var ErrUnknownEventType = terminalSentinel{errors.New("unknown event type")}

type terminalSentinel struct{ error }

func (terminalSentinel) Terminal() bool { return true }

// ParseError is a malformed message. It is terminal for that message: a
// poison message must not block the partition.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse event: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Terminal() bool { return true }

// ValidationError is a structurally invalid event (required field missing).
// Terminal: redelivery cannot fix it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Terminal() bool { return true }

// Parse decodes and validates a raw message into its envelope and typed
// payload. Dispatch on the returned payload is a closed switch over the
// four event kinds.
func Parse(raw []byte) (Envelope, Payload, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, nil, &ParseError{Err: err}
	}
	if env.EventID == "" {
		return env, nil, &ValidationError{Field: "eventId", Message: "is required"}
	}

	var payload Payload
	switch env.EventType {
	case EventTypeProductCreated:
		payload = &ProductCreated{}
	case EventTypeProductUpdated:
		payload = &ProductUpdated{}
	case EventTypeProductDeleted:
		payload = &ProductDeleted{}
	case EventTypeLowStockWarning:
		payload = &LowStockWarning{}
	default:
		return env, nil, ErrUnknownEventType
	}

	if err := json.Unmarshal(env.Data, payload); err != nil {
		return env, nil, &ParseError{Err: err}
	}
	if err := payload.Validate(); err != nil {
		return env, nil, err
	}
	return env, payload, nil
}

// StorageKey is the partition key shared by all downstream keyed storage.
func StorageKey(sellerID string, productID string) string {
	return sellerID + "#" + productID
}

// SortKey orders a product's records by time, with the event kind as the
// tie-break.
func SortKey(ts time.Time, eventType EventType) string {
	return ts.UTC().Format(time.RFC3339Nano) + "#" + string(eventType)
}

func requireIdentity(productID string, sellerID string) error {
	if productID == "" {
		return &ValidationError{Field: "productId", Message: "is required"}
	}
	if sellerID == "" {
		return &ValidationError{Field: "sellerId", Message: "is required"}
	}
	return nil
}
