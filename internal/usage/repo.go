package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
)

// Repository persists the monthly usage counters on the user row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Increment applies the delta in a single SQL update so concurrent
	// calls never lose an increment. Returns gorm.ErrRecordNotFound when
	// the user row does not exist.
	Increment(ctx context.Context, userID uuid.UUID, delta Delta) error
	Find(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Reset(ctx context.Context, userID uuid.UUID, at time.Time) error
	// ListResetDue returns ids of users whose counters have not been
	// reset since the cutoff.
	ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Increment(ctx context.Context, userID uuid.UUID, delta Delta) error {
	updates := map[string]any{}
	if delta.AICalls != 0 {
		updates["monthly_ai_calls"] = gorm.Expr("monthly_ai_calls + ?", delta.AICalls)
	}
	if delta.RenderMinutes != 0 {
		updates["monthly_render_minutes"] = gorm.Expr("monthly_render_minutes + ?", delta.RenderMinutes)
	}
	if !delta.StorageGB.IsZero() {
		updates["monthly_storage_gb"] = gorm.Expr("monthly_storage_gb + ?", delta.StorageGB)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Find(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) Reset(ctx context.Context, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"monthly_ai_calls":       0,
			"monthly_render_minutes": 0,
			"monthly_storage_gb":     0,
			"usage_reset_at":         at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("usage_reset_at <= ?", cutoff).
		Order("usage_reset_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
