package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/filmfusion-ai/filmfusion-backend/pkg/auth"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/auth/session"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	pkgmodels "github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/security"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "filmfusion",
		ExpirationMinutes: 15,
	}
}

type loginUserRepo struct {
	users       map[string]*pkgmodels.User
	lastLoginAt *time.Time
}

func (r *loginUserRepo) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := r.users[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *loginUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.lastLoginAt = &at
	return nil
}

type stubSessionManager struct {
	generated map[string]string
	rotateErr error
	revoked   []string
}

func newStubSessionManager() *stubSessionManager {
	return &stubSessionManager{generated: map[string]string{}}
}

func (s *stubSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.generated[accessID] = token
	return token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	stored, ok := s.generated[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.generated, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	s.generated[newID] = token
	return newID, token, nil
}

func (s *stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	delete(s.generated, accessID)
	return nil
}

func seedLoginUser(t *testing.T, email, password string) (*loginUserRepo, *pkgmodels.User) {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &pkgmodels.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Ava",
		PasswordHash: hash,
		IsActive:     true,
	}
	return &loginUserRepo{users: map[string]*pkgmodels.User{email: user}}, user
}

func newAuthService(t *testing.T, repo userRepository, sessions sessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestLogin_Success(t *testing.T) {
	repo, user := seedLoginUser(t, "ava@example.com", "password123")
	sessions := newStubSessionManager()
	svc := newAuthService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "  Ava@Example.com ",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("unexpected login error: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("access token does not parse: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s in claims, got %s", user.ID, claims.UserID)
	}
	if _, ok := sessions.generated[claims.ID]; !ok {
		t.Fatal("expected refresh session keyed by the token jti")
	}
	if resp.RefreshToken == "" {
		t.Fatal("expected refresh token")
	}
	if repo.lastLoginAt == nil {
		t.Fatal("expected last login timestamp update")
	}
	if resp.User == nil || resp.User.Email != "ava@example.com" {
		t.Fatalf("unexpected user payload %+v", resp.User)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo, _ := seedLoginUser(t, "ava@example.com", "password123")
	svc := newAuthService(t, repo, newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ava@example.com",
		Password: "nope",
	})
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", code)
	}
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	repo := &loginUserRepo{users: map[string]*pkgmodels.User{}}
	svc := newAuthService(t, repo, newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	if err == nil {
		t.Fatal("expected unauthorized error")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected generic unauthorized, got %v", err)
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	repo, user := seedLoginUser(t, "ava@example.com", "password123")
	user.IsActive = false
	svc := newAuthService(t, repo, newStubSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ava@example.com",
		Password: "password123",
	})
	if err == nil {
		t.Fatal("expected unauthorized error for inactive user")
	}
}

func TestRefresh_RotatesSession(t *testing.T) {
	repo, _ := seedLoginUser(t, "ava@example.com", "password123")
	sessions := newStubSessionManager()
	svc := newAuthService(t, repo, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ava@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == login.AccessToken {
		t.Fatal("expected a new access token")
	}
	if refreshed.RefreshToken == login.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}

	// The old pair must be dead after rotation.
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err == nil {
		t.Fatal("expected reuse of rotated refresh token to fail")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %s", code)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	repo, _ := seedLoginUser(t, "ava@example.com", "password123")
	sessions := newStubSessionManager()
	svc := newAuthService(t, repo, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "ava@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), login.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != claims.ID {
		t.Fatalf("expected revoke of %s, got %v", claims.ID, sessions.revoked)
	}
}
