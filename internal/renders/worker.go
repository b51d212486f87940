package renders

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/events"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const defaultPublishTimeout = 10 * time.Second

// Pipeline stage checkpoints reported while a job renders.
var stageProgress = []int{25, 50, 75}

type usageRecorder interface {
	Record(ctx context.Context, userID uuid.UUID, delta usage.Delta) error
}

type projectFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Worker drains the render queue. It simulates the pipeline stages with
// progress updates, meters the rendered minutes on completion, and
// publishes a terminal event either way.
type Worker struct {
	repo     Repository
	projects projectFinder
	usage    usageRecorder
	pub      publisher
	logg     *logger.Logger
	cfg      config.RenderConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorker builds a render worker.
func NewWorker(repo Repository, projects projectFinder, usageRecorder usageRecorder, pub publisher, cfg config.RenderConfig, logg *logger.Logger) (*Worker, error) {
	if repo == nil {
		return nil, fmt.Errorf("render repository required")
	}
	if projects == nil {
		return nil, fmt.Errorf("project finder required")
	}
	if usageRecorder == nil {
		return nil, fmt.Errorf("usage recorder required")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Worker{
		repo:     repo,
		projects: projects,
		usage:    usageRecorder,
		pub:      pub,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

// Run polls the queue until the context ends.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.logg.Info(ctx, "render worker started")
	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "render worker stopping")
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.repo.ClaimQueued(ctx, w.now().UTC())
		if err != nil {
			w.logg.Error(ctx, "claim queued render", err)
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *models.RenderJob) {
	logCtx := w.logg.WithJobID(w.logg.WithUserID(ctx, job.UserID.String()), job.ID.String())

	project, err := w.projects.FindByID(logCtx, job.ProjectID)
	if err != nil {
		reason := "load project failed"
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reason = "project no longer exists"
		}
		w.fail(logCtx, job, "", reason)
		return
	}

	for _, progress := range stageProgress {
		if err := w.sleep(logCtx, w.cfg.StageDelay); err != nil {
			// Shutdown mid-render: leave the job processing so the
			// stale-job sweep reclaims it.
			return
		}
		if err := w.repo.SetProgress(logCtx, job.ID, progress); err != nil {
			w.fail(logCtx, job, project.Title, "progress update failed")
			return
		}
	}

	completedAt := w.now().UTC()
	outputURL := fmt.Sprintf("%s/%s.mp4", w.cfg.OutputURLPrefix, job.ID)
	if err := w.repo.Complete(logCtx, job.ID, outputURL, completedAt); err != nil {
		w.logg.Error(logCtx, "mark render completed", err)
		return
	}

	if err := w.usage.Record(logCtx, job.UserID, usage.Delta{RenderMinutes: job.DurationMinutes}); err != nil {
		// The render itself succeeded; metering drift is logged and
		// left to the reconcile sweep rather than failing the job.
		w.logg.Error(logCtx, "record render minutes", err)
	}

	w.publish(logCtx, EventRenderCompleted, RenderFinishedEvent{
		RenderJobID:     job.ID,
		UserID:          job.UserID,
		ProjectID:       job.ProjectID,
		ProjectName:     project.Title,
		DurationMinutes: job.DurationMinutes,
		OutputURL:       outputURL,
	})
	w.logg.Info(logCtx, "render completed")
}

func (w *Worker) fail(ctx context.Context, job *models.RenderJob, projectName, reason string) {
	if err := w.repo.Fail(ctx, job.ID, reason, w.now().UTC()); err != nil {
		w.logg.Error(ctx, "mark render failed", err)
		return
	}
	w.publish(ctx, EventRenderFailed, RenderFinishedEvent{
		RenderJobID:     job.ID,
		UserID:          job.UserID,
		ProjectID:       job.ProjectID,
		ProjectName:     projectName,
		DurationMinutes: job.DurationMinutes,
		Reason:          reason,
	})
	w.logg.Warn(ctx, fmt.Sprintf("render failed: %s", reason))
}

func (w *Worker) publish(ctx context.Context, eventType string, payload RenderFinishedEvent) {
	data, err := events.Wrap(payload, w.now())
	if err != nil {
		w.logg.Error(ctx, "encode render event", err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := w.pub.Publish(publishCtx, &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			events.AttributeEventType: eventType,
		},
	})
	if result == nil {
		w.logg.Error(ctx, "publish render event", fmt.Errorf("publisher returned nil result"))
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		w.logg.Error(ctx, "publish render event", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewGCPPublisher adapts a Pub/Sub publisher handle to the worker's
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
	if p == nil || p.inner == nil {
		return nil
	}
	return p.inner.Publish(ctx, msg)
}
