package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/email"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	paginationpkg "github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

type fakeRepository struct {
	created  []models.Notification
	createFn func(ctx context.Context, notification *models.Notification) error
	listFn   func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	deleteFn func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, notification)
	}
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeRepository) ListByUser(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

type fakeSender struct {
	sent []email.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg email.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
}

func newTestService(t *testing.T, repo Repository, sender email.Sender) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Sender: sender, Logger: testLogger()})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "ava@example.com", Name: "Ava"}
}

func TestDispatch_RecordsSentNotification(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)
	user := testUser()

	svc.Dispatch(context.Background(), enums.NotificationKindPaymentReceipt, user, map[string]any{"amount": "$29.00"})

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if sender.sent[0].To != user.Email {
		t.Fatalf("expected recipient %s, got %s", user.Email, sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].HTML, "$29.00") {
		t.Fatalf("expected amount in body, got %q", sender.sent[0].HTML)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 log row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.Status != enums.NotificationStatusSent {
		t.Fatalf("expected sent status, got %s", row.Status)
	}
	if row.UserID != user.ID || row.Kind != enums.NotificationKindPaymentReceipt {
		t.Fatalf("unexpected log row %+v", row)
	}
}

func TestDispatch_PaymentFailedLinksHostedInvoice(t *testing.T) {
	sender := &fakeSender{}
	svc := newTestService(t, &fakeRepository{}, sender)
	user := testUser()

	svc.Dispatch(context.Background(), enums.NotificationKindPaymentFailed, user, map[string]any{
		"amount":      "$29.00",
		"invoice_url": "https://invoice.stripe.com/i/in_1",
	})

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].HTML, "https://invoice.stripe.com/i/in_1") {
		t.Fatalf("expected invoice link in body, got %q", sender.sent[0].HTML)
	}

	svc.Dispatch(context.Background(), enums.NotificationKindPaymentFailed, user, map[string]any{
		"amount": "$5.00",
	})
	if strings.Contains(sender.sent[1].HTML, "href") {
		t.Fatalf("expected no link without invoice_url, got %q", sender.sent[1].HTML)
	}
}

func TestDispatch_SendFailureIsLoggedNotReturned(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{err: errors.New("provider down")}
	svc := newTestService(t, repo, sender)

	svc.Dispatch(context.Background(), enums.NotificationKindWelcome, testUser(), nil)

	if len(repo.created) != 1 {
		t.Fatalf("expected failure to be recorded, got %d rows", len(repo.created))
	}
	row := repo.created[0]
	if row.Status != enums.NotificationStatusFailed {
		t.Fatalf("expected failed status, got %s", row.Status)
	}
	if row.Error == nil || !strings.Contains(*row.Error, "provider down") {
		t.Fatalf("expected provider error on row, got %v", row.Error)
	}
}

func TestDispatch_SkipsUserWithoutEmail(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)

	svc.Dispatch(context.Background(), enums.NotificationKindWelcome, &models.User{ID: uuid.New()}, nil)

	if len(sender.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.sent))
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no log row, got %d", len(repo.created))
	}
}

func TestUsageWarning_BuildsTemplateData(t *testing.T) {
	repo := &fakeRepository{}
	sender := &fakeSender{}
	svc := newTestService(t, repo, sender)

	svc.UsageWarning(context.Background(), testUser(), enums.UsageMetricAICalls, 40, 50)

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if !strings.Contains(msg.Subject, "80%") {
		t.Fatalf("expected 80%% in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "40") || !strings.Contains(msg.HTML, "50") {
		t.Fatalf("expected counts in body, got %q", msg.HTML)
	}
	if len(repo.created) != 1 || repo.created[0].Kind != enums.NotificationKindUsageWarning {
		t.Fatalf("expected usage_warning log row, got %+v", repo.created)
	}
}

func TestListByUser_EncodesNextCursor(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			return []models.Notification{first}, &paginationpkg.Cursor{CreatedAt: second.CreatedAt, ID: second.ID}, nil
		},
	}
	svc := newTestService(t, repo, &fakeSender{})

	result, err := svc.ListByUser(context.Background(), ListParams{UserID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != second.ID {
		t.Fatalf("expected cursor id %s got %s", second.ID, decoded.ID)
	}
}

func TestListByUser_InvalidCursor(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, &fakeSender{})
	_, err := svc.ListByUser(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}
