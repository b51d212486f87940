package analytics

import (
	"context"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/events"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 10 * time.Second
)

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Emitter queues usage increments and publishes them to the usage topic.
// It implements the event sink hook on the usage service: enqueueing never
// blocks, and events are dropped with a warning when the queue is full.
type Emitter struct {
	pub   publisher
	logg  *logger.Logger
	queue chan UsageEvent
	now   func() time.Time
}

var _ usage.EventSink = (*Emitter)(nil)

// NewEmitter builds an emitter with a bounded in-memory queue.
func NewEmitter(pub publisher, logg *logger.Logger) (*Emitter, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Emitter{
		pub:   pub,
		logg:  logg,
		queue: make(chan UsageEvent, defaultQueueSize),
		now:   time.Now,
	}, nil
}

// UsageRecorded enqueues one event per non-zero counter in the increment.
func (e *Emitter) UsageRecorded(ctx context.Context, userID uuid.UUID, delta usage.Delta) {
	for _, ev := range eventsForDelta(userID, delta) {
		select {
		case e.queue <- ev:
		default:
			e.logg.Warn(e.logg.WithUserID(ctx, userID.String()), "usage event queue full, dropping event")
		}
	}
}

// Run publishes queued events until the context is canceled.
func (e *Emitter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-e.queue:
			e.publish(ctx, ev)
		}
	}
}

func (e *Emitter) publish(ctx context.Context, ev UsageEvent) {
	logCtx := e.logg.WithUserID(ctx, ev.UserID.String())

	data, err := events.Wrap(ev, e.now())
	if err != nil {
		e.logg.Error(logCtx, "encode usage event", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := e.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			events.AttributeEventType: EventUsageRecorded,
		},
	})
	if result == nil {
		e.logg.Error(logCtx, "publish usage event", fmt.Errorf("publisher returned nil result"))
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		e.logg.Error(logCtx, "publish usage event", err)
	}
}

// NewGCPPublisher adapts a Pub/Sub publisher handle to the emitter's
// publisher interface.
func NewGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{inner: p}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}
