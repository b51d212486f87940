package usage

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCatalog() *plans.Catalog {
	return plans.NewCatalog(config.PlansConfig{ProPriceID: "price_pro"}, nil)
}

func newUsageDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	// The users DDL carries Postgres defaults; create a minimal
	// sqlite-compatible shape by hand.
	ddl := `CREATE TABLE users (
		id text PRIMARY KEY,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		name text NOT NULL,
		is_active numeric NOT NULL DEFAULT true,
		last_login_at datetime,
		stripe_customer_id text,
		stripe_subscription_id text,
		subscription_status text NOT NULL DEFAULT 'inactive',
		plan_tier text NOT NULL DEFAULT 'free',
		current_period_start datetime,
		current_period_end datetime,
		cancel_at_period_end numeric NOT NULL DEFAULT false,
		monthly_ai_calls integer NOT NULL DEFAULT 0,
		monthly_render_minutes integer NOT NULL DEFAULT 0,
		monthly_storage_gb numeric NOT NULL DEFAULT 0,
		usage_reset_at datetime NOT NULL,
		created_at datetime,
		updated_at datetime
	)`
	if err := conn.Exec(ddl).Error; err != nil {
		t.Fatalf("failed to create users table: %v", err)
	}
	return conn
}

func seedUser(t *testing.T, db *gorm.DB, tier enums.PlanTier) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Name:         "Test User",
		PlanTier:     tier,
		UsageResetAt: time.Now().UTC(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(db),
		Catalog: testCatalog(),
		Logger:  testLogger(),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestRecordAndGet(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierPro)
	svc := newTestService(t, db)
	ctx := context.Background()

	err := svc.Record(ctx, user.ID, Delta{AICalls: 3, RenderMinutes: 2, StorageGB: decimal.NewFromFloat(0.5)})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	err = svc.Record(ctx, user.ID, Delta{AICalls: 1})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	counters, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if counters.AICalls != 4 || counters.RenderMinutes != 2 {
		t.Fatalf("unexpected counters %+v", counters)
	}
	if !counters.StorageGB.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("unexpected storage counter %s", counters.StorageGB)
	}
}

func TestRecordRejectsNegativeDelta(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierFree)
	svc := newTestService(t, db)

	err := svc.Record(context.Background(), user.ID, Delta{AICalls: -1})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordUnknownUser(t *testing.T) {
	db := newUsageDB(t)
	svc := newTestService(t, db)

	err := svc.Record(context.Background(), uuid.New(), Delta{AICalls: 1})
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentRecordLosesNoIncrements(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierEnterprise)
	svc := newTestService(t, db)
	ctx := context.Background()

	const workers = 100
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if err := svc.Record(ctx, user.ID, Delta{AICalls: 1}); err != nil {
				t.Errorf("Record failed: %v", err)
			}
		}()
	}
	wg.Wait()

	counters, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if counters.AICalls != workers {
		t.Fatalf("lost updates: expected %d ai calls, got %d", workers, counters.AICalls)
	}
}

func TestResetZeroesCounters(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierPro)
	svc := newTestService(t, db)
	ctx := context.Background()

	if err := svc.Record(ctx, user.ID, Delta{AICalls: 7, RenderMinutes: 3, StorageGB: decimal.NewFromFloat(1.25)}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	before := time.Now().UTC().Add(-time.Second)
	if err := svc.Reset(ctx, user.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	counters, err := svc.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if counters.AICalls != 0 || counters.RenderMinutes != 0 || !counters.StorageGB.IsZero() {
		t.Fatalf("expected zeroed counters, got %+v", counters)
	}
	if counters.ResetAt.Before(before) {
		t.Fatalf("expected reset date to be stamped, got %v", counters.ResetAt)
	}
}

func TestAllowUnderLimit(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierFree)
	svc := newTestService(t, db)

	if err := svc.Allow(context.Background(), user.ID, enums.UsageMetricAICalls); err != nil {
		t.Fatalf("expected gate to allow, got %v", err)
	}
}

func TestAllowRefusesAtLimit(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierFree)
	svc := newTestService(t, db)
	ctx := context.Background()

	// Free tier allows 50 AI calls.
	if err := svc.Record(ctx, user.ID, Delta{AICalls: 50}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	err := svc.Allow(ctx, user.ID, enums.UsageMetricAICalls)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
}

func TestAllowUnlimitedMetric(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierEnterprise)
	svc := newTestService(t, db)
	ctx := context.Background()

	if err := svc.Record(ctx, user.ID, Delta{AICalls: 100000}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Allow(ctx, user.ID, enums.UsageMetricAICalls); err != nil {
		t.Fatalf("unlimited metric must never be gated, got %v", err)
	}
}

type recordingWarner struct {
	mu    sync.Mutex
	calls []enums.UsageMetric
}

func (w *recordingWarner) UsageWarning(_ context.Context, _ *models.User, metric enums.UsageMetric, _, _ int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, metric)
}

func TestAllowFiresUsageWarningAtThreshold(t *testing.T) {
	db := newUsageDB(t)
	user := seedUser(t, db, enums.PlanTierFree)
	warner := &recordingWarner{}
	svc, err := NewService(ServiceParams{
		Repo:             NewRepository(db),
		Catalog:          testCatalog(),
		Warner:           warner,
		WarnThresholdPct: 80,
		Logger:           testLogger(),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	ctx := context.Background()

	// 40 of 50 free-tier AI calls used: exactly the 80% threshold.
	if err := svc.Record(ctx, user.ID, Delta{AICalls: 40}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := svc.Allow(ctx, user.ID, enums.UsageMetricAICalls); err != nil {
		t.Fatalf("expected allow at threshold, got %v", err)
	}

	if len(warner.calls) != 1 || warner.calls[0] != enums.UsageMetricAICalls {
		t.Fatalf("expected one usage warning, got %v", warner.calls)
	}
}
