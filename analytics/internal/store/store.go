// Package store persists projected analytics in DynamoDB. One table holds
// three record families distinguished by key shape: per-product analytics
// (pk sellerId#productId), the short-lived event log (pk eventId), and
// daily per-seller roll-ups (pk sellerId, sk day). A global secondary index
// EventTypeIndex serves cross-product queries by event kind.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"product-catalog-platform/shared/events"
)

const EventTypeIndex = "EventTypeIndex"

const (
	analyticsRetentionDays = 30
	eventLogRetentionDays  = 7
	dailyRetentionDays     = 90
)

// DynamoAPI is the slice of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Store struct {
	client DynamoAPI
	table  string
}

func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// AnalyticsRecord is one projected data point for a product. PriceChange and
// QuantityChange are deltas against the previous state and are zero for
// event kinds that carry no delta.
type AnalyticsRecord struct {
	PK             string  `dynamodbav:"pk"`
	SK             string  `dynamodbav:"sk"`
	EventID        string  `dynamodbav:"eventId"`
	EventType      string  `dynamodbav:"eventType"`
	SellerID       string  `dynamodbav:"sellerId"`
	ProductID      string  `dynamodbav:"productId"`
	ProductName    string  `dynamodbav:"productName"`
	Category       string  `dynamodbav:"category"`
	Price          float64 `dynamodbav:"price"`
	Quantity       int     `dynamodbav:"quantity"`
	PriceChange    float64 `dynamodbav:"priceChange"`
	QuantityChange int     `dynamodbav:"quantityChange"`
	Timestamp      string  `dynamodbav:"timestamp"`
	ExpiresAt      int64   `dynamodbav:"expiresAt"`
}

// EventLogRecord is the raw envelope kept for debugging and replay. Short
// retention; the S3 archive is the durable copy.
type EventLogRecord struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	EventID   string `dynamodbav:"eventId"`
	EventType string `dynamodbav:"eventType"`
	SellerID  string `dynamodbav:"sellerId"`
	ProductID string `dynamodbav:"productId"`
	Raw       string `dynamodbav:"raw"`
	Timestamp string `dynamodbav:"timestamp"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// SellerDailyRecord aggregates one seller's event counts for one UTC day.
type SellerDailyRecord struct {
	PK              string `dynamodbav:"pk"`
	SK              string `dynamodbav:"sk"`
	SellerID        string `dynamodbav:"sellerId"`
	Day             string `dynamodbav:"day"`
	Created         int    `dynamodbav:"created"`
	Updated         int    `dynamodbav:"updated"`
	Deleted         int    `dynamodbav:"deleted"`
	LowStockAlerts  int    `dynamodbav:"lowStockAlerts"`
	DistinctProduct int    `dynamodbav:"distinctProducts"`
	ExpiresAt       int64  `dynamodbav:"expiresAt"`
}

func NewAnalyticsRecord(env events.Envelope, sellerID string, productID string) AnalyticsRecord {
	return AnalyticsRecord{
		PK:        events.StorageKey(sellerID, productID),
		SK:        events.SortKey(env.Timestamp, env.EventType),
		EventID:   env.EventID,
		EventType: string(env.EventType),
		SellerID:  sellerID,
		ProductID: productID,
		Timestamp: env.Timestamp.UTC().Format(time.RFC3339Nano),
		ExpiresAt: expiry(env.Timestamp, analyticsRetentionDays),
	}
}

func NewEventLogRecord(env events.Envelope, sellerID string, productID string, raw []byte) EventLogRecord {
	return EventLogRecord{
		PK:        env.EventID,
		SK:        env.Timestamp.UTC().Format(time.RFC3339Nano),
		EventID:   env.EventID,
		EventType: string(env.EventType),
		SellerID:  sellerID,
		ProductID: productID,
		Raw:       string(raw),
		Timestamp: env.Timestamp.UTC().Format(time.RFC3339Nano),
		ExpiresAt: expiry(env.Timestamp, eventLogRetentionDays),
	}
}

func NewSellerDailyRecord(sellerID string, day time.Time) SellerDailyRecord {
	d := day.UTC().Format("2006-01-02")
	return SellerDailyRecord{
		PK:        sellerID,
		SK:        "daily#" + d,
		SellerID:  sellerID,
		Day:       d,
		ExpiresAt: expiry(day, dailyRetentionDays),
	}
}

func expiry(from time.Time, days int) int64 {
	return from.UTC().Add(time.Duration(days) * 24 * time.Hour).Unix()
}

func (s *Store) PutAnalytics(ctx context.Context, rec AnalyticsRecord) error {
	return s.put(ctx, rec)
}

func (s *Store) PutEventLog(ctx context.Context, rec EventLogRecord) error {
	return s.put(ctx, rec)
}

func (s *Store) PutSellerDaily(ctx context.Context, rec SellerDailyRecord) error {
	return s.put(ctx, rec)
}

func (s *Store) put(ctx context.Context, rec any) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// ProductHistory returns a product's analytics records in the given time
// window, newest first.
func (s *Store) ProductHistory(ctx context.Context, sellerID string, productID string, since time.Time, until time.Time, limit int) ([]AnalyticsRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :since AND :until"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: events.StorageKey(sellerID, productID)},
			":since": &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)},
			// '~' sorts after any RFC3339 timestamp digit, closing the range.
			":until": &types.AttributeValueMemberS{Value: until.UTC().Format(time.RFC3339Nano) + "~"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query product history: %w", err)
	}

	records := make([]AnalyticsRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var rec AnalyticsRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// EventsByType returns analytics records of one event kind across all
// products via the EventTypeIndex, newest first.
func (s *Store) EventsByType(ctx context.Context, eventType events.EventType, since time.Time, until time.Time, limit int) ([]AnalyticsRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(EventTypeIndex),
		KeyConditionExpression: aws.String("eventType = :et AND #ts BETWEEN :since AND :until"),
		ExpressionAttributeNames: map[string]string{
			"#ts": "timestamp",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et":    &types.AttributeValueMemberS{Value: string(eventType)},
			":since": &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)},
			":until": &types.AttributeValueMemberS{Value: until.UTC().Format(time.RFC3339Nano)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query events by type: %w", err)
	}

	records := make([]AnalyticsRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var rec AnalyticsRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// AllEventsByType returns every analytics record of one event kind in the
// window, following DynamoDB pagination until the window is exhausted. Use
// this for aggregation; EventsByType serves capped API reads.
func (s *Store) AllEventsByType(ctx context.Context, eventType events.EventType, since time.Time, until time.Time) ([]AnalyticsRecord, error) {
	var records []AnalyticsRecord
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(EventTypeIndex),
			KeyConditionExpression: aws.String("eventType = :et AND #ts BETWEEN :since AND :until"),
			ExpressionAttributeNames: map[string]string{
				"#ts": "timestamp",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":et":    &types.AttributeValueMemberS{Value: string(eventType)},
				":since": &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339Nano)},
				":until": &types.AttributeValueMemberS{Value: until.UTC().Format(time.RFC3339Nano)},
			},
			ExclusiveStartKey: startKey,
			Limit:             aws.Int32(1000),
		})
		if err != nil {
			return nil, fmt.Errorf("query events by type: %w", err)
		}
		for _, item := range out.Items {
			var rec AnalyticsRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal record: %w", err)
			}
			records = append(records, rec)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return records, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// SellerDaily returns a seller's daily roll-ups for the given day range,
// newest first.
func (s *Store) SellerDaily(ctx context.Context, sellerID string, sinceDay string, untilDay string, limit int) ([]SellerDailyRecord, error) {
	if limit <= 0 || limit > 365 {
		limit = 90
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :since AND :until"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: sellerID},
			":since": &types.AttributeValueMemberS{Value: "daily#" + sinceDay},
			":until": &types.AttributeValueMemberS{Value: "daily#" + untilDay + "~"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("query seller daily: %w", err)
	}

	records := make([]SellerDailyRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var rec SellerDailyRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
