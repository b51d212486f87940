package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

// AppendInput captures one provider payment outcome.
type AppendInput struct {
	UserID          uuid.UUID
	PaymentIntentID string
	InvoiceID       string
	AmountCents     int64
	Currency        string
	Status          enums.PaymentStatus
	Type            enums.PaymentType
	Description     string
	PaidAt          *time.Time
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns the append-only payment record ledger.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the payments service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("payments repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// WithTx returns a copy of the service bound to the given transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{repo: s.repo.WithTx(tx), logg: s.logg}
}

// Append inserts one payment record. Re-appending the same invoice id
// with the same status is a no-op so webhook redelivery stays idempotent.
func (s *Service) Append(ctx context.Context, input AppendInput) (*models.Payment, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}

	if input.InvoiceID != "" {
		existing, err := s.repo.FindByInvoiceID(ctx, input.InvoiceID, input.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking for existing payment")
		}
		if existing != nil {
			s.logg.Info(s.logg.WithField(ctx, "invoice_id", input.InvoiceID),
				"payment already recorded, skipping duplicate")
			return existing, nil
		}
	}

	currency := input.Currency
	if currency == "" {
		currency = "usd"
	}

	payment := &models.Payment{
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		Currency:    currency,
		Status:      input.Status,
		Type:        input.Type,
		PaidAt:      input.PaidAt,
	}
	if input.PaymentIntentID != "" {
		payment.StripePaymentIntentID = &input.PaymentIntentID
	}
	if input.InvoiceID != "" {
		payment.StripeInvoiceID = &input.InvoiceID
	}
	if input.Description != "" {
		payment.Description = &input.Description
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending payment record")
	}
	return payment, nil
}

// MarkSucceeded promotes a pending record, the single allowed mutation.
func (s *Service) MarkSucceeded(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	if err := s.repo.MarkSucceeded(ctx, id, paidAt); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no pending payment to promote")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "promoting payment")
	}
	return nil
}

// ListByUser returns the user's payment history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	rows, cursor, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payments")
	}
	return rows, cursor, nil
}
