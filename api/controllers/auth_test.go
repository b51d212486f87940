package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/internal/auth"
	"github.com/filmfusion-ai/filmfusion-backend/internal/users"
	pkgAuth "github.com/filmfusion-ai/filmfusion-backend/pkg/auth"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/auth/session"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
)

type testAuthService struct {
	loginFn   func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	refreshFn func(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error)
	logoutFn  func(ctx context.Context, accessID string) error
}

func (s *testAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return &auth.LoginResponse{}, nil
}

func (s *testAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, req)
	}
	return &auth.RefreshResponse{}, nil
}

func (s *testAuthService) Logout(ctx context.Context, accessID string) error {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, accessID)
	}
	return nil
}

func TestAuthLoginReturnsTokenPair(t *testing.T) {
	svc := &testAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			if req.Email != "maya@example.com" {
				t.Fatalf("unexpected email %q", req.Email)
			}
			return &auth.LoginResponse{
				AccessToken:  "access",
				RefreshToken: "refresh",
				User:         &users.UserDTO{ID: uuid.New(), Email: req.Email},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"maya@example.com","password":"hunter22"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.AccessToken != "access" || envelope.Data.RefreshToken != "refresh" {
		t.Fatalf("unexpected tokens %+v", envelope.Data)
	}
}

func TestAuthLoginRejectsBadPayload(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"not-an-email","password":""}`))
	resp := httptest.NewRecorder()
	AuthLogin(&testAuthService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLoginSurfacesUnauthorized(t *testing.T) {
	svc := &testAuthService{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"maya@example.com","password":"wrong"}`))
	resp := httptest.NewRecorder()
	AuthLogin(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshRotatesPair(t *testing.T) {
	var captured auth.RefreshRequest
	svc := &testAuthService{
		refreshFn: func(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
			captured = req
			return &auth.RefreshResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"access_token":"old-access","refresh_token":"old-refresh"}`))
	resp := httptest.NewRecorder()
	AuthRefresh(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if captured.AccessToken != "old-access" || captured.RefreshToken != "old-refresh" {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	accessID := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New(), JTI: accessID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var revoked string
	svc := &testAuthService{
		logoutFn: func(ctx context.Context, id string) error {
			revoked = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	AuthLogout(svc, cfg, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if revoked != accessID {
		t.Fatalf("expected revoked %s got %s", accessID, revoked)
	}
}

func TestAuthMeReturnsProfile(t *testing.T) {
	userID := uuid.New()
	repo := &testUserLoader{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.User, error) {
			if id != userID {
				t.Fatalf("unexpected user %s", id)
			}
			return &models.User{ID: id, Email: "maya@example.com", Name: "Maya"}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/me", userID, nil)
	resp := httptest.NewRecorder()
	AuthMe(repo, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			User users.UserDTO `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.User.Email != "maya@example.com" {
		t.Fatalf("unexpected user %+v", envelope.Data.User)
	}
}

type testUserLoader struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (s *testUserLoader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, nil
}
