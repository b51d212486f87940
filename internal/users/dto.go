package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                 uuid.UUID                `json:"id"`
	Email              string                   `json:"email"`
	Name               string                   `json:"name"`
	IsActive           bool                     `json:"is_active"`
	LastLoginAt        *time.Time               `json:"last_login_at,omitempty"`
	PlanTier           enums.PlanTier           `json:"plan_tier"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	IsPremium          bool                     `json:"is_premium"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Name         string
	IsActive     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		IsActive:           u.IsActive,
		LastLoginAt:        u.LastLoginAt,
		PlanTier:           u.PlanTier,
		SubscriptionStatus: u.SubscriptionStatus,
		IsPremium:          u.IsPremium(),
		CancelAtPeriodEnd:  u.CancelAtPeriodEnd,
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	return &models.User{
		Email:              c.Email,
		PasswordHash:       c.PasswordHash,
		Name:               c.Name,
		IsActive:           isActive,
		SubscriptionStatus: enums.SubscriptionStatusInactive,
		PlanTier:           enums.PlanTierFree,
		UsageResetAt:       time.Now().UTC(),
	}
}
