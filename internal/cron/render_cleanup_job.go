package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const (
	defaultRenderStaleAfter = 30 * time.Minute
	renderStaleReason       = "render timed out"
)

type staleRenderFailer interface {
	FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

// RenderCleanupJobParams configure the stale render sweep.
type RenderCleanupJobParams struct {
	Logger     *logger.Logger
	Renders    staleRenderFailer
	StaleAfter time.Duration
	Now        func() time.Time
}

// NewRenderCleanupJob builds the job that fails render jobs abandoned by
// a worker that died mid-render.
func NewRenderCleanupJob(params RenderCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Renders == nil {
		return nil, fmt.Errorf("render repository required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultRenderStaleAfter
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &renderCleanupJob{
		logg:       params.Logger,
		renders:    params.Renders,
		staleAfter: staleAfter,
		now:        now,
	}, nil
}

type renderCleanupJob struct {
	logg       *logger.Logger
	renders    staleRenderFailer
	staleAfter time.Duration
	now        func() time.Time
}

func (j *renderCleanupJob) Name() string { return "render-cleanup" }

func (j *renderCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	failed, err := j.renders.FailStale(ctx, cutoff, renderStaleReason)
	if err != nil {
		return fmt.Errorf("fail stale renders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":      cutoff,
		"rows_failed": failed,
	})
	j.logg.Info(logCtx, "stale render sweep complete")
	return nil
}
