// Package archive writes raw event envelopes to S3: a historical bucket on
// the standard storage class for recent reads, and a cold archive bucket on
// Glacier. Both writes must succeed for an event to count as archived.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"product-catalog-platform/shared/events"
	"product-catalog-platform/shared/metricsx"
)

// S3API is the slice of the S3 client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Archiver struct {
	client           S3API
	historicalBucket string
	archiveBucket    string
}

func New(client S3API, historicalBucket string, archiveBucket string) *Archiver {
	return &Archiver{
		client:           client,
		historicalBucket: historicalBucket,
		archiveBucket:    archiveBucket,
	}
}

// Key lays events out by time then kind, so hourly prefixes stay small and
// kind-scoped listing does not scan unrelated events.
func Key(env events.Envelope) string {
	ts := env.Timestamp.UTC()
	return fmt.Sprintf("events/%04d/%02d/%02d/%02d/%s/%s.json",
		ts.Year(), ts.Month(), ts.Day(), ts.Hour(), env.EventType, env.EventID)
}

// Store writes the raw envelope to both buckets. Any failure is returned to
// the caller; the projection for this event is not complete until both
// copies exist.
func (a *Archiver) Store(ctx context.Context, env events.Envelope, raw []byte) error {
	key := Key(env)
	meta := map[string]string{
		"event-id":   env.EventID,
		"event-type": string(env.EventType),
		"source":     env.Source,
	}

	if err := a.putObject(ctx, a.historicalBucket, key, raw, meta, types.StorageClassStandard); err != nil {
		metricsx.IncArchiveWriteFailure(a.historicalBucket)
		return fmt.Errorf("historical archive: %w", err)
	}
	if err := a.putObject(ctx, a.archiveBucket, key, raw, meta, types.StorageClassGlacier); err != nil {
		metricsx.IncArchiveWriteFailure(a.archiveBucket)
		return fmt.Errorf("cold archive: %w", err)
	}
	return nil
}

func (a *Archiver) putObject(ctx context.Context, bucket string, key string, body []byte, meta map[string]string, class types.StorageClass) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		Metadata:     meta,
		StorageClass: class,
	})
	return err
}
