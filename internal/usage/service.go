package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

// Warner receives best-effort usage warnings when a counter approaches
// its plan limit. Implementations must not block the request path.
type Warner interface {
	UsageWarning(ctx context.Context, user *models.User, metric enums.UsageMetric, used, limit int64)
}

// EventSink observes successful increments for analytics export.
// Implementations must not block the request path.
type EventSink interface {
	UsageRecorded(ctx context.Context, userID uuid.UUID, delta Delta)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Repo             Repository
	Catalog          *plans.Catalog
	Shared           store.Store
	Warner           Warner
	Sink             EventSink
	WarnThresholdPct int
	Logger           *logger.Logger
}

// Service owns the monthly usage counters and the plan-limit gate.
type Service struct {
	repo    Repository
	catalog *plans.Catalog
	shared  store.Store
	warner  Warner
	sink    EventSink
	warnPct int64
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the usage service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("usage repository is required")
	}
	if params.Catalog == nil {
		return nil, errors.New("plan catalog is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	warnPct := int64(params.WarnThresholdPct)
	if warnPct <= 0 || warnPct >= 100 {
		warnPct = 80
	}
	return &Service{
		repo:    params.Repo,
		catalog: params.Catalog,
		shared:  params.Shared,
		warner:  params.Warner,
		sink:    params.Sink,
		warnPct: warnPct,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Record applies an additive usage increment atomically.
func (s *Service) Record(ctx context.Context, userID uuid.UUID, delta Delta) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if delta.Negative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage increments must be non-negative")
	}
	if delta.IsZero() {
		return nil
	}

	if err := s.repo.Increment(ctx, userID, delta); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording usage")
	}
	if s.sink != nil {
		s.sink.UsageRecorded(ctx, userID, delta)
	}
	return nil
}

// Get returns the user's current counters. Missing users are an error;
// callers depend on the row existing.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Counters, error) {
	user, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Counters{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return Counters{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading usage")
	}
	return s.countersFrom(ctx, user), nil
}

// Reset zeroes all counters and stamps the reset date.
func (s *Service) Reset(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Reset(ctx, userID, s.now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resetting usage")
	}
	return nil
}

// Allow gates one metered action against the user's plan limit. Counters
// at or over the limit refuse with a quota error; the eventual overage
// invoice uses the same catalog limits, so gate and invoicer agree.
func (s *Service) Allow(ctx context.Context, userID uuid.UUID, metric enums.UsageMetric) error {
	user, err := s.repo.Find(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading usage for gate")
	}

	tier := s.catalog.Get(user.PlanTier)
	limit, ok := tier.Limit(metric)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("metric %s is not gated", metric))
	}
	if limit == plans.Unlimited {
		return nil
	}

	used := s.counterFor(ctx, user, metric)
	if used >= limit {
		return pkgerrors.New(pkgerrors.CodeQuotaExceeded, fmt.Sprintf("%s quota exceeded", metric)).
			WithDetails(map[string]any{"metric": metric.String(), "used": used, "limit": limit})
	}

	s.maybeWarn(ctx, user, metric, used, limit)
	return nil
}

// maybeWarn fires a one-shot usage warning per user/metric/period once
// the counter crosses the warning threshold.
func (s *Service) maybeWarn(ctx context.Context, user *models.User, metric enums.UsageMetric, used, limit int64) {
	if s.warner == nil || used*100 < limit*s.warnPct {
		return
	}
	if s.shared != nil {
		key := fmt.Sprintf("ff:usage_warning:%s:%s:%s", user.ID, metric, user.UsageResetAt.UTC().Format("2006-01-02"))
		set, err := s.shared.SetNX(ctx, key, "1", 35*24*time.Hour)
		if err != nil {
			s.logg.Warn(ctx, "usage warning dedup store unavailable")
			return
		}
		if !set {
			return
		}
	}
	s.warner.UsageWarning(ctx, user, metric, used, limit)
}

func (s *Service) counterFor(ctx context.Context, user *models.User, metric enums.UsageMetric) int64 {
	switch metric {
	case enums.UsageMetricAICalls:
		return s.clamp(ctx, metric, user.MonthlyAICalls)
	case enums.UsageMetricRenderMinutes:
		return s.clamp(ctx, metric, user.MonthlyRenderMinutes)
	default:
		return 0
	}
}

func (s *Service) countersFrom(ctx context.Context, user *models.User) Counters {
	storage := user.MonthlyStorageGB
	if storage.IsNegative() {
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "negative storage counter clamped to zero")
		storage = decimal.Zero
	}
	return Counters{
		AICalls:       s.clamp(ctx, enums.UsageMetricAICalls, user.MonthlyAICalls),
		RenderMinutes: s.clamp(ctx, enums.UsageMetricRenderMinutes, user.MonthlyRenderMinutes),
		StorageGB:     storage,
		ResetAt:       user.UsageResetAt,
	}
}

// clamp guards the by-construction invariant that counters never go
// negative; a violation is logged, not surfaced.
func (s *Service) clamp(ctx context.Context, metric enums.UsageMetric, value int64) int64 {
	if value >= 0 {
		return value
	}
	s.logg.Warn(s.logg.WithField(ctx, "metric", metric.String()), "negative usage counter clamped to zero")
	return 0
}
