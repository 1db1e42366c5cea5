package mqx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"product-catalog-platform/shared/config"
	"product-catalog-platform/shared/logx"
	"product-catalog-platform/shared/metricsx"
)

// PublishError means the bus was unreachable after the writer exhausted its
// retries. Callers treat it as non-fatal to the triggering request but must
// surface it to operators.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string { return fmt.Sprintf("publish to %s: %v", e.Topic, e.Err) }
func (e *PublishError) Unwrap() error { return e.Err }

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg config.Config) (*Producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	// Hash balancer: all events keyed by the same product id land on the
	// same partition, giving strict per-product ordering.
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		MaxAttempts:  maxInt(cfg.KafkaRetryMax, 1),
		BatchTimeout: time.Duration(cfg.KafkaWriteMS) * time.Millisecond,
		Transport: &kafka.Transport{
			ClientID: cfg.KafkaClientID,
		},
	}
	return &Producer{writer: w}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error {
	if p == nil || p.writer == nil {
		return errors.New("producer not initialized")
	}
	ctx, span := otel.Tracer("mqx").Start(ctx, "kafka.produce")
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", topic),
	)
	defer span.End()
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for k, v := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metricsx.IncPublishFailure(topic)
		return &PublishError{Topic: topic, Err: err}
	}
	metricsx.IncPublished(topic, headers["eventType"])
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func NewConsumer(cfg config.Config, topic string, groupID string) (*kafka.Reader, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if groupID == "" {
		groupID = cfg.KafkaGroupID
	}
	if groupID == "" {
		return nil, errors.New("KAFKA_CONSUMER_GROUP is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	return reader, nil
}

// Handler processes one raw message. A nil return acknowledges; an error
// that reports Terminal() == true is logged and acknowledged anyway (skip);
// any other error is treated as transient and the same message is retried,
// so the committed offset never advances past an unapplied message.
type Handler func(ctx context.Context, msg kafka.Message) error

// Reader is the slice of *kafka.Reader the consumer loop needs; split out so
// the loop's ack semantics can be tested without a broker.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type terminal interface {
	Terminal() bool
}

// IsTerminal reports whether err (or anything it wraps) is terminal for the
// current message: processed as far as it ever can be, safe to acknowledge.
func IsTerminal(err error) bool {
	var t terminal
	return errors.As(err, &t) && t.Terminal()
}

// RunConsumer pulls messages one at a time under the given group and runs
// the handler synchronously. The next message is not fetched until the
// current one is settled, preserving per-partition ordering. Returns when
// ctx is cancelled, after the in-flight message has been settled.
func RunConsumer(ctx context.Context, reader Reader, groupID string, handler Handler, logger logx.Logger) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if !processMessage(ctx, msg, handler, logger) {
			return
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		if r, ok := reader.(*kafka.Reader); ok {
			stats := r.Stats()
			metricsx.SetKafkaLag(stats.Topic, groupID, stats.Lag)
		}
	}
}

// processMessage runs the handler until the message is settled: success or a
// terminal error. Transient failures back off and retry the same message.
// Returns false when ctx was cancelled before the message settled.
func processMessage(ctx context.Context, msg kafka.Message, handler Handler, logger logx.Logger) bool {
	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		spanCtx, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
		span.SetAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		)
		start := time.Now()
		err := handler(spanCtx, msg)
		span.End()
		metricsx.ObserveProcessingLatency(msg.Topic, time.Since(start))

		if err == nil {
			metricsx.IncConsumed(msg.Topic, "ok")
			return true
		}
		if IsTerminal(err) {
			metricsx.IncConsumed(msg.Topic, "skipped")
			// Poison or structurally invalid message: skip and acknowledge
			// so it cannot block the partition.
			logger.Warn(ctx, "event_skipped", "terminal error, skipping message",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
			return true
		}

		logger.Error(ctx, "event_handle_failed", "transient failure, will retry message",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}
