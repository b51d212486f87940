package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// Payment is an append-only record of a provider payment attempt. Rows
// are never rewritten after insert; the only allowed transition is
// pending to succeeded, which also stamps PaidAt.
type Payment struct {
	ID                    uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	StripePaymentIntentID *string             `gorm:"column:stripe_payment_intent_id"`
	StripeInvoiceID       *string             `gorm:"column:stripe_invoice_id;index"`
	AmountCents           int64               `gorm:"column:amount_cents;not null"`
	Currency              string              `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Type                  enums.PaymentType   `gorm:"column:type;type:payment_type;not null;default:'subscription'"`
	Description           *string             `gorm:"column:description"`
	PaidAt                *time.Time          `gorm:"column:paid_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
}
