package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
)

func newUserDB(t *testing.T) *gorm.DB {
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

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Name:         "Test User",
		UsageResetAt: time.Now().UTC(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestSetStripeCustomerID_FirstClaimWins(t *testing.T) {
	db := newUserDB(t)
	repo := NewRepository(db)
	user := seedUser(t, db)

	claimed, err := repo.SetStripeCustomerID(context.Background(), user.ID, "cus_first")
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to win")
	}

	claimed, err = repo.SetStripeCustomerID(context.Background(), user.ID, "cus_second")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("expected second claim to lose")
	}

	got, err := repo.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.StripeCustomerID == nil || *got.StripeCustomerID != "cus_first" {
		t.Fatalf("expected cus_first persisted, got %v", got.StripeCustomerID)
	}
}

func TestSetStripeCustomerID_UnknownUserDoesNotClaim(t *testing.T) {
	db := newUserDB(t)
	repo := NewRepository(db)

	claimed, err := repo.SetStripeCustomerID(context.Background(), uuid.New(), "cus_orphan")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatal("expected no claim for unknown user")
	}
}
