package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/filmfusion-ai/filmfusion-backend/internal/billing"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const defaultResetBatchSize = 500

type resetDueLister interface {
	ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type usageResetter interface {
	Reset(ctx context.Context, userID uuid.UUID) error
}

type overageInvoicer interface {
	InvoiceOverages(ctx context.Context, userID uuid.UUID) (*billing.OverageInvoiceDTO, error)
}

// UsageResetJobParams configure the monthly usage reset job. Overages is
// optional; when set, each user's overages are invoiced before their
// counters reset.
type UsageResetJobParams struct {
	Logger    *logger.Logger
	Due       resetDueLister
	Usage     usageResetter
	Overages  overageInvoicer
	BatchSize int
	Now       func() time.Time
}

// NewUsageResetJob builds the job that rolls usage windows whose reset
// timestamp has passed.
func NewUsageResetJob(params UsageResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Due == nil {
		return nil, fmt.Errorf("reset due lister required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage resetter required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultResetBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &usageResetJob{
		logg:      params.Logger,
		due:       params.Due,
		usage:     params.Usage,
		overages:  params.Overages,
		batchSize: batchSize,
		now:       now,
	}, nil
}

type usageResetJob struct {
	logg      *logger.Logger
	due       resetDueLister
	usage     usageResetter
	overages  overageInvoicer
	batchSize int
	now       func() time.Time
}

func (j *usageResetJob) Name() string { return "usage-reset" }

func (j *usageResetJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	var reset, invoiced int
	var errs []error

	for {
		due, err := j.due.ListResetDue(ctx, cutoff, j.batchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("list reset due: %w", err))
			break
		}
		if len(due) == 0 {
			break
		}

		progressed := false
		for _, userID := range due {
			if err := ctx.Err(); err != nil {
				return multierr.Combine(append(errs, err)...)
			}
			if j.overages != nil {
				// Overages must land on an invoice before the counters
				// backing them are zeroed; a failed invoice leaves the
				// window intact for the next sweep.
				invoice, err := j.overages.InvoiceOverages(ctx, userID)
				if err != nil {
					errs = append(errs, fmt.Errorf("invoice overages for %s: %w", userID, err))
					continue
				}
				if invoice.InvoiceID != "" {
					invoiced++
				}
			}
			if err := j.usage.Reset(ctx, userID); err != nil {
				errs = append(errs, fmt.Errorf("reset usage for %s: %w", userID, err))
				continue
			}
			reset++
			progressed = true
		}
		// A batch where every reset failed would re-list the same users.
		if !progressed {
			break
		}
		if len(due) < j.batchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"reset":    reset,
		"invoiced": invoiced,
		"failed":   len(errs),
	})
	j.logg.Info(logCtx, "usage reset sweep complete")
	return multierr.Combine(errs...)
}
