package services

import (
	"context"
	"errors"
	"testing"

	"classledger/internal/adapters/persistence/repositories"
	"classledger/internal/config"
	"classledger/internal/core/domain"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:           "test-secret",
			RefreshSecret:    "test-refresh-secret",
			AccessTokenMins:  15,
			RefreshTokenDays: 7,
		},
	}
	return NewAuthService(repositories.NewUserRepository(db), repositories.NewRefreshTokenRepository(db), cfg)
}

func registerInput() *RegisterInput {
	return &RegisterInput{
		SchoolID: 1,
		Username: "frontdesk",
		Email:    "frontdesk@example.com",
		FullName: "Front Desk",
		Password: "s3cret-password",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Role != domain.RoleStaff {
		t.Errorf("Role = %q, want STAFF default", resp.User.Role)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("expected a token pair")
	}

	login, err := svc.Login(ctx, &LoginInput{Username: "frontdesk", Password: "s3cret-password"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if login.User.ID != resp.User.ID {
		t.Errorf("logged in as user %d, want %d", login.User.ID, resp.User.ID)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	dup := registerInput()
	dup.Email = "other@example.com"
	if _, err := svc.Register(ctx, dup); !errors.Is(err, ErrUserAlreadyExists) {
		t.Fatalf("err = %v, want ErrUserAlreadyExists", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, &LoginInput{Username: "frontdesk", Password: "wrong-password"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, &LoginInput{Username: "nobody", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials for unknown user", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	rotated, err := svc.Refresh(ctx, resp.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == resp.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The old token is revoked by rotation and cannot be replayed.
	if _, err := svc.Refresh(ctx, resp.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("replay err = %v, want ErrTokenRevoked", err)
	}
}

func TestLogoutRevokesRefreshTokens(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, registerInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.Logout(ctx, resp.User.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, resp.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("err = %v, want ErrTokenRevoked after logout", err)
	}
}
