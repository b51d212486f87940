package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByStripeCustomerID resolves the user owning a billing customer.
// Returns (nil, nil) when no user carries the customer id, so webhook
// handlers can distinguish orphan events from lookup failures.
func (r *Repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// SetStripeCustomerID assigns the billing customer id once. Rows that
// already carry a customer id are left untouched; the return reports
// whether this call won the claim.
func (r *Repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND stripe_customer_id IS NULL", id).
		UpdateColumn("stripe_customer_id", customerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// BillingState is the full set of subscription columns the reconciler
// writes as one unit.
type BillingState struct {
	SubscriptionID     *string
	Status             enums.SubscriptionStatus
	PlanTier           enums.PlanTier
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
}

// UpdateBillingState overwrites the user's subscription columns.
func (r *Repository) UpdateBillingState(ctx context.Context, id uuid.UUID, state BillingState) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stripe_subscription_id": state.SubscriptionID,
			"subscription_status":    state.Status,
			"plan_tier":              state.PlanTier,
			"current_period_start":   state.CurrentPeriodStart,
			"current_period_end":     state.CurrentPeriodEnd,
			"cancel_at_period_end":   state.CancelAtPeriodEnd,
		}).Error
}

// ListActiveSubscribers returns ids of users holding a subscription,
// for the reconciliation sweep.
func (r *Repository) ListActiveSubscribers(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("stripe_subscription_id IS NOT NULL").
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
