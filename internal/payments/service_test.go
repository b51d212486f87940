package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

type stubPaymentsRepo struct {
	rows []*models.Payment
}

func (r *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubPaymentsRepo) Create(_ context.Context, payment *models.Payment) error {
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now().UTC()
	r.rows = append(r.rows, payment)
	return nil
}

func (r *stubPaymentsRepo) FindByInvoiceID(_ context.Context, invoiceID string, status enums.PaymentStatus) (*models.Payment, error) {
	for _, row := range r.rows {
		if row.StripeInvoiceID != nil && *row.StripeInvoiceID == invoiceID && row.Status == status {
			return row, nil
		}
	}
	return nil, nil
}

func (r *stubPaymentsRepo) MarkSucceeded(_ context.Context, id uuid.UUID, paidAt time.Time) error {
	for _, row := range r.rows {
		if row.ID == id && row.Status == enums.PaymentStatusPending {
			row.Status = enums.PaymentStatusSucceeded
			row.PaidAt = &paidAt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubPaymentsRepo) ListByUser(_ context.Context, userID uuid.UUID, _ pagination.Params) ([]models.Payment, *pagination.Cursor, error) {
	var out []models.Payment
	for _, row := range r.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil, nil
}

func newPaymentsService(t *testing.T) (*Service, *stubPaymentsRepo) {
	t.Helper()
	repo := &stubPaymentsRepo{}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc, repo
}

func TestAppendRecordsFailedPayment(t *testing.T) {
	svc, repo := newPaymentsService(t)

	payment, err := svc.Append(context.Background(), AppendInput{
		UserID:      uuid.New(),
		InvoiceID:   "in_123",
		AmountCents: 2900,
		Status:      enums.PaymentStatusFailed,
		Type:        enums.PaymentTypeSubscription,
		Description: "Monthly subscription",
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if payment.Status != enums.PaymentStatusFailed || payment.AmountCents != 2900 {
		t.Fatalf("unexpected record %+v", payment)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected 1 appended row, got %d", len(repo.rows))
	}
}

func TestAppendDuplicateInvoiceIsNoOp(t *testing.T) {
	svc, repo := newPaymentsService(t)
	input := AppendInput{
		UserID:      uuid.New(),
		InvoiceID:   "in_dup",
		AmountCents: 2900,
		Status:      enums.PaymentStatusSucceeded,
		Type:        enums.PaymentTypeSubscription,
	}

	first, err := svc.Append(context.Background(), input)
	if err != nil {
		t.Fatalf("first Append failed: %v", err)
	}
	second, err := svc.Append(context.Background(), input)
	if err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	if len(repo.rows) != 1 {
		t.Fatalf("expected duplicate append to be skipped, got %d rows", len(repo.rows))
	}
	if first.ID != second.ID {
		t.Fatalf("expected the existing record back, got %s and %s", first.ID, second.ID)
	}
}

func TestAppendSameInvoiceDifferentStatus(t *testing.T) {
	svc, repo := newPaymentsService(t)
	userID := uuid.New()

	if _, err := svc.Append(context.Background(), AppendInput{
		UserID: userID, InvoiceID: "in_retry", AmountCents: 2900,
		Status: enums.PaymentStatusFailed, Type: enums.PaymentTypeSubscription,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if _, err := svc.Append(context.Background(), AppendInput{
		UserID: userID, InvoiceID: "in_retry", AmountCents: 2900,
		Status: enums.PaymentStatusSucceeded, Type: enums.PaymentTypeSubscription,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if len(repo.rows) != 2 {
		t.Fatalf("failed-then-succeeded must keep both rows, got %d", len(repo.rows))
	}
}

func TestAppendValidation(t *testing.T) {
	svc, _ := newPaymentsService(t)

	_, err := svc.Append(context.Background(), AppendInput{
		InvoiceID: "in_x", AmountCents: 100,
		Status: enums.PaymentStatusSucceeded, Type: enums.PaymentTypeSubscription,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing user, got %v", err)
	}

	_, err = svc.Append(context.Background(), AppendInput{
		UserID: uuid.New(), AmountCents: -1,
		Status: enums.PaymentStatusSucceeded, Type: enums.PaymentTypeSubscription,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
}

func TestMarkSucceededOnlyPromotesPending(t *testing.T) {
	svc, repo := newPaymentsService(t)
	ctx := context.Background()

	pending, err := svc.Append(ctx, AppendInput{
		UserID: uuid.New(), InvoiceID: "in_pending", AmountCents: 500,
		Status: enums.PaymentStatusPending, Type: enums.PaymentTypeUsage,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	paidAt := time.Now().UTC()
	if err := svc.MarkSucceeded(ctx, pending.ID, paidAt); err != nil {
		t.Fatalf("MarkSucceeded failed: %v", err)
	}
	if repo.rows[0].Status != enums.PaymentStatusSucceeded || repo.rows[0].PaidAt == nil {
		t.Fatalf("expected promoted record, got %+v", repo.rows[0])
	}

	err = svc.MarkSucceeded(ctx, pending.ID, paidAt)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found promoting a non-pending record, got %v", err)
	}
}
