package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/internal/renders"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/events"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

const (
	renderNotificationConsumer = "render-notifications"
	consumerDedupeTTL          = 7 * 24 * time.Hour
)

type dispatcher interface {
	Dispatch(ctx context.Context, kind enums.NotificationKind, user *models.User, data map[string]any)
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Consumer watches render events and turns terminal render states into
// render_complete / render_failed emails.
type Consumer struct {
	dispatcher   dispatcher
	users        userFinder
	subscription *pubsub.Subscriber
	shared       store.Store
	logg         *logger.Logger
}

// NewConsumer builds a render notification consumer.
func NewConsumer(dispatcher dispatcher, users userFinder, subscription *pubsub.Subscriber, shared store.Store, logg *logger.Logger) (*Consumer, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if users == nil {
		return nil, fmt.Errorf("user finder required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("render subscription required")
	}
	if shared == nil {
		return nil, fmt.Errorf("shared store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		dispatcher:   dispatcher,
		users:        users,
		subscription: subscription,
		shared:       shared,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
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

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes[events.AttributeEventType]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != renders.EventRenderCompleted && eventType != renders.EventRenderFailed {
		c.logg.Info(logCtx, "skipping non-render event")
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

	dedupeKey := fmt.Sprintf("ff:consumer:%s:%s", renderNotificationConsumer, envelope.EventID)
	fresh, err := c.shared.SetNX(ctx, dedupeKey, "1", consumerDedupeTTL)
	if err != nil {
		c.logg.Error(logCtx, "dedupe check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload renders.RenderFinishedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.shared.Delete(ctx, dedupeKey)
		return processResult{nack: true}
	}

	logCtx = c.logg.WithFields(logCtx, map[string]any{
		"render_job_id": payload.RenderJobID.String(),
		"user_id":       payload.UserID.String(),
	})

	if err := c.handle(ctx, eventType, payload, logCtx); err != nil {
		c.logg.Error(logCtx, "render notification failed", err)
		_ = c.shared.Delete(ctx, dedupeKey)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType string, payload renders.RenderFinishedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	user, err := c.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	kind := enums.NotificationKindRenderComplete
	data := map[string]any{
		"project":    payload.ProjectName,
		"output_url": payload.OutputURL,
	}
	if eventType == renders.EventRenderFailed {
		kind = enums.NotificationKindRenderFailed
		data = map[string]any{
			"project": payload.ProjectName,
			"reason":  payload.Reason,
		}
	}

	c.dispatcher.Dispatch(ctx, kind, user, data)
	c.logg.Info(logCtx, "render outcome dispatched")
	return nil
}
