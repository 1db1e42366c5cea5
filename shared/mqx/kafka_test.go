package mqx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"product-catalog-platform/shared/config"
	"product-catalog-platform/shared/logx"
)

type terminalErr struct{ msg string }

func (e *terminalErr) Error() string  { return e.msg }
func (e *terminalErr) Terminal() bool { return true }

type fakeReader struct {
	messages  []kafka.Message
	committed []kafka.Message
	fetched   int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.fetched >= len(r.messages) {
		<-ctx.Done()
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.fetched]
	r.fetched++
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func testLogger() logx.Logger {
	return logx.New("mqx-test", "test", "dev", "error")
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(&terminalErr{msg: "poison"}) {
		t.Fatal("terminal error not detected")
	}
	if !IsTerminal(fmt.Errorf("wrapped: %w", &terminalErr{msg: "poison"})) {
		t.Fatal("wrapped terminal error not detected")
	}
	if IsTerminal(errors.New("transient")) {
		t.Fatal("plain error must not be terminal")
	}
}

func TestRunConsumerCommitsOnSuccess(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "t", Offset: 1, Value: []byte("a")},
		{Topic: "t", Offset: 2, Value: []byte("b")},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var handled []int64
	handler := func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if len(handled) == 2 {
			cancel()
		}
		return nil
	}

	RunConsumer(ctx, reader, "group", handler, testLogger())

	if len(handled) != 2 || handled[0] != 1 || handled[1] != 2 {
		t.Fatalf("handled = %v", handled)
	}
	if len(reader.committed) != 2 {
		t.Fatalf("committed %d messages, want 2", len(reader.committed))
	}
}

func TestRunConsumerSkipsTerminalError(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "t", Offset: 7, Value: []byte("poison")},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return &terminalErr{msg: "bad payload"}
	}

	RunConsumer(ctx, reader, "group", handler, testLogger())

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1 (no retry on terminal)", calls)
	}
	if len(reader.committed) != 1 || reader.committed[0].Offset != 7 {
		t.Fatalf("terminal message must still be acknowledged, committed = %v", reader.committed)
	}
}

func TestRunConsumerRetriesTransientWithoutCommit(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "t", Offset: 3, Value: []byte("flaky")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls >= 2 {
			// Still failing; stop the loop mid-retry.
			cancel()
		}
		return errors.New("downstream unavailable")
	}

	RunConsumer(ctx, reader, "group", handler, testLogger())

	if calls < 2 {
		t.Fatalf("handler calls = %d, want retries on transient error", calls)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("offset must not advance past an unapplied message, committed = %v", reader.committed)
	}
}

func TestRunConsumerTransientThenSuccess(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Topic: "t", Offset: 9, Value: []byte("eventually")},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		cancel()
		return nil
	}

	RunConsumer(ctx, reader, "group", handler, testLogger())

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if len(reader.committed) != 1 || reader.committed[0].Offset != 9 {
		t.Fatalf("recovered message must be acknowledged, committed = %v", reader.committed)
	}
}

func configWithBrokers(brokers []string) config.Config {
	return config.Config{
		KafkaBrokers:  brokers,
		KafkaClientID: "mqx-test",
		KafkaRetryMax: 3,
		KafkaWriteMS:  1000,
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(configWithBrokers(nil)); err == nil {
		t.Fatal("expected error for missing brokers")
	}
	p, err := NewProducer(configWithBrokers([]string{"localhost:9092"}))
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer p.Close()
}
