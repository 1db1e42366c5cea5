package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"product-catalog-platform/shared/events"
)

// pagedDynamo serves Query results one fixed page at a time, returning a
// LastEvaluatedKey until the final page, the way DynamoDB cuts responses at
// its size limit.
type pagedDynamo struct {
	pages     [][]AnalyticsRecord
	startKeys []map[string]types.AttributeValue
	calls     int
}

func (f *pagedDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *pagedDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.startKeys = append(f.startKeys, params.ExclusiveStartKey)
	if f.calls >= len(f.pages) {
		return nil, fmt.Errorf("unexpected query call %d", f.calls)
	}
	page := f.pages[f.calls]
	f.calls++

	out := &dynamodb.QueryOutput{}
	for _, rec := range page {
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}
	if f.calls < len(f.pages) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"eventId": &types.AttributeValueMemberS{Value: page[len(page)-1].EventID},
		}
	}
	return out, nil
}

func TestAllEventsByTypeFollowsPagination(t *testing.T) {
	var pages [][]AnalyticsRecord
	total := 0
	for p := 0; p < 3; p++ {
		var page []AnalyticsRecord
		for i := 0; i < 4; i++ {
			total++
			page = append(page, AnalyticsRecord{
				EventID:   fmt.Sprintf("ev-%d", total),
				EventType: string(events.EventTypeProductUpdated),
				SellerID:  "s1",
				ProductID: fmt.Sprintf("p%d", total),
			})
		}
		pages = append(pages, page)
	}
	fake := &pagedDynamo{pages: pages}
	st := New(fake, "analytics")

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records, err := st.AllEventsByType(context.Background(), events.EventTypeProductUpdated, since, since.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("AllEventsByType: %v", err)
	}
	if len(records) != total {
		t.Fatalf("records = %d, want %d", len(records), total)
	}
	if fake.calls != 3 {
		t.Fatalf("query calls = %d, want 3", fake.calls)
	}
	if fake.startKeys[0] != nil {
		t.Fatal("first page must not carry a start key")
	}
	for i := 1; i < len(fake.startKeys); i++ {
		if fake.startKeys[i] == nil {
			t.Fatalf("page %d must resume from the previous LastEvaluatedKey", i)
		}
	}
	if records[0].EventID != "ev-1" || records[total-1].EventID != fmt.Sprintf("ev-%d", total) {
		t.Fatalf("records out of order: first %s last %s", records[0].EventID, records[total-1].EventID)
	}
}

func TestEventsByTypeSinglePage(t *testing.T) {
	fake := &pagedDynamo{pages: [][]AnalyticsRecord{{
		{EventID: "ev-1", EventType: string(events.EventTypeProductCreated), SellerID: "s1", ProductID: "p1"},
	}}}
	st := New(fake, "analytics")

	since := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	records, err := st.EventsByType(context.Background(), events.EventTypeProductCreated, since, since.Add(time.Hour), 50)
	if err != nil {
		t.Fatalf("EventsByType: %v", err)
	}
	if len(records) != 1 || records[0].EventID != "ev-1" {
		t.Fatalf("records = %+v", records)
	}
	if fake.calls != 1 {
		t.Fatalf("query calls = %d, want 1", fake.calls)
	}
}
