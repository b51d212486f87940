package analytics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/events"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

type fakeRowWriter struct {
	rows []UsageEventRow
	err  error
}

func (f *fakeRowWriter) Insert(_ context.Context, row UsageEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func newTestConsumer(t *testing.T, writer rowWriter) *Consumer {
	t.Helper()
	consumer := &Consumer{
		writer: writer,
		shared: store.NewMemoryStore(),
		logg:   logger.New(logger.Options{ServiceName: "analytics-test", Output: io.Discard}),
		now:    func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
	return consumer
}

func usageMessage(t *testing.T, ev UsageEvent) *gcppubsub.Message {
	t.Helper()
	data, err := events.Wrap(ev, time.Date(2026, 3, 15, 11, 59, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("wrap event: %v", err)
	}
	return &gcppubsub.Message{
		ID:   "m1",
		Data: data,
		Attributes: map[string]string{
			events.AttributeEventType: EventUsageRecorded,
		},
	}
}

func TestConsumerIngestsUsageEvent(t *testing.T) {
	writer := &fakeRowWriter{}
	consumer := newTestConsumer(t, writer)
	userID := uuid.New()

	msg := usageMessage(t, UsageEvent{
		UserID:   userID,
		Type:     EventRenderCompleted,
		Metric:   enums.UsageMetricRenderMinutes,
		Quantity: decimal.NewFromInt(7),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(writer.rows))
	}
	row := writer.rows[0]
	if row.UserID != userID.String() {
		t.Fatalf("unexpected user id %q", row.UserID)
	}
	if row.EventType != EventRenderCompleted || row.Metric != "render_minutes" {
		t.Fatalf("unexpected row classification: %+v", row)
	}
	if row.Quantity != 7 {
		t.Fatalf("unexpected quantity %v", row.Quantity)
	}
	if row.InsertedAt.IsZero() || row.OccurredAt.IsZero() {
		t.Fatalf("expected timestamps to be set: %+v", row)
	}
}

func TestConsumerDeduplicatesRedeliveries(t *testing.T) {
	writer := &fakeRowWriter{}
	consumer := newTestConsumer(t, writer)

	msg := usageMessage(t, UsageEvent{
		UserID:   uuid.New(),
		Type:     EventAICall,
		Metric:   enums.UsageMetricAICalls,
		Quantity: decimal.NewFromInt(1),
	})

	first := consumer.process(context.Background(), msg)
	second := consumer.process(context.Background(), msg)

	if !first.ack || !second.ack {
		t.Fatalf("expected both deliveries acked, got %+v / %+v", first, second)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("expected single insert across redeliveries, got %d", len(writer.rows))
	}
}

func TestConsumerNacksOnInsertFailureAndRetries(t *testing.T) {
	writer := &fakeRowWriter{err: errors.New("warehouse down")}
	consumer := newTestConsumer(t, writer)

	msg := usageMessage(t, UsageEvent{
		UserID:   uuid.New(),
		Type:     EventAICall,
		Metric:   enums.UsageMetricAICalls,
		Quantity: decimal.NewFromInt(1),
	})

	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack on insert failure, got %+v", result)
	}

	// Dedupe key was released, so the retry lands.
	writer.err = nil
	retry := consumer.process(context.Background(), msg)
	if !retry.ack {
		t.Fatalf("expected retry to ack, got %+v", retry)
	}
	if len(writer.rows) != 1 {
		t.Fatalf("expected 1 row after retry, got %d", len(writer.rows))
	}
}

func TestConsumerSkipsForeignEvents(t *testing.T) {
	writer := &fakeRowWriter{}
	consumer := newTestConsumer(t, writer)

	msg := &gcppubsub.Message{
		ID:   "m2",
		Data: []byte(`{}`),
		Attributes: map[string]string{
			events.AttributeEventType: "render.completed",
		},
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected foreign event acked, got %+v", result)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(writer.rows))
	}
}

func TestConsumerAcksMalformedEnvelope(t *testing.T) {
	writer := &fakeRowWriter{}
	consumer := newTestConsumer(t, writer)

	msg := &gcppubsub.Message{
		ID:   "m3",
		Data: []byte(`not json`),
		Attributes: map[string]string{
			events.AttributeEventType: EventUsageRecorded,
		},
	}

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected malformed envelope acked, got %+v", result)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(writer.rows))
	}
}

func TestConsumerRejectsMissingUser(t *testing.T) {
	writer := &fakeRowWriter{}
	consumer := newTestConsumer(t, writer)

	msg := usageMessage(t, UsageEvent{
		Type:     EventAICall,
		Metric:   enums.UsageMetricAICalls,
		Quantity: decimal.NewFromInt(1),
	})

	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected ack for unusable event, got %+v", result)
	}
	if len(writer.rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(writer.rows))
	}
}
