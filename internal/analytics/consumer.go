package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/events"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

const (
	usageAnalyticsConsumer = "usage-analytics"
	consumerDedupeTTL      = 7 * 24 * time.Hour
)

type rowWriter interface {
	Insert(ctx context.Context, row UsageEventRow) error
}

// Consumer ingests usage events from the usage subscription into BigQuery.
type Consumer struct {
	writer       rowWriter
	subscription *gcppubsub.Subscriber
	shared       store.Store
	logg         *logger.Logger
	now          func() time.Time
}

// NewConsumer builds a usage analytics consumer.
func NewConsumer(writer rowWriter, subscription *gcppubsub.Subscriber, shared store.Store, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("usage event writer required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("usage subscription required")
	}
	if shared == nil {
		return nil, fmt.Errorf("shared store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		writer:       writer,
		subscription: subscription,
		shared:       shared,
		logg:         logg,
		now:          time.Now,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	eventType := msg.Attributes[events.AttributeEventType]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != EventUsageRecorded {
		c.logg.Info(logCtx, "skipping non-usage event")
		return processResult{ack: true}
	}

	var envelope events.Envelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID)

	dedupeKey := fmt.Sprintf("ff:consumer:%s:%s", usageAnalyticsConsumer, envelope.EventID)
	fresh, err := c.shared.SetNX(ctx, dedupeKey, "1", consumerDedupeTTL)
	if err != nil {
		c.logg.Error(logCtx, "dedupe check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload UsageEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.shared.Delete(ctx, dedupeKey)
		return processResult{nack: true}
	}
	if payload.UserID == uuid.Nil {
		c.logg.Error(logCtx, "usage event rejected", fmt.Errorf("user id missing"))
		return processResult{ack: true}
	}

	row := UsageEventRow{
		EventID:    envelope.EventID,
		UserID:     payload.UserID.String(),
		EventType:  payload.Type,
		Metric:     payload.Metric.String(),
		Quantity:   payload.Quantity.InexactFloat64(),
		OccurredAt: envelope.OccurredAt,
		InsertedAt: c.now().UTC(),
	}

	if err := c.writer.Insert(ctx, row); err != nil {
		c.logg.Error(logCtx, "failed to insert usage row", err)
		_ = c.shared.Delete(ctx, dedupeKey)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "usage event ingested")
	return processResult{ack: true}
}
