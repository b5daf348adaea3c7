package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAndLogin(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now().Add(-time.Minute)
	updatedAt := time.Now().Add(-time.Minute)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "owner@example.com", pgxmock.AnyArg(), "Owner One", RoleOwner).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	user, tokens, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "owner@example.com",
		Password: "password123",
		FullName: "Owner One",
		Role:     RoleOwner,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected user and tokens")
	}

	passwordHash := user.PasswordHash

	mock.ExpectQuery(`SELECT id, email, password_hash, full_name, role, created_at, updated_at`).
		WithArgs("owner@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "created_at", "updated_at"}).
			AddRow(user.ID, user.Email, passwordHash, user.FullName, user.Role, createdAt, updatedAt))

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), user.ID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, loginTokens, err := svc.Login(context.Background(), LoginRequest{Email: "owner@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginTokens.AccessToken == "" {
		t.Fatalf("expected access token")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService("test-secret", nil)

	if _, _, err := svc.Register(context.Background(), RegisterRequest{Password: "x", Role: RoleOwner}); err == nil {
		t.Fatalf("expected error for missing email")
	}
	if _, _, err := svc.Register(context.Background(), RegisterRequest{Email: "a@b.c", Password: "x", Role: "ADMIN"}); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.DefaultCost)

	mock.ExpectQuery(`SELECT id, email, password_hash, full_name, role, created_at, updated_at`).
		WithArgs("owner@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "created_at", "updated_at"}).
			AddRow("u-1", "owner@example.com", string(hash), "Owner", RoleOwner, time.Now(), time.Now()))

	svc := NewService("test-secret", mock)
	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "owner@example.com", Password: "wrong"})
	if err == nil {
		t.Fatalf("expected invalid credentials")
	}
}

func TestValidateAccessToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "u-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	userID, err := svc.ValidateAccessToken(tokens.AccessToken)
	if err != nil || userID != "u-1" {
		t.Fatalf("validate: %v %q", err, userID)
	}

	other := NewService("other-secret", mock)
	if _, err := other.ValidateAccessToken(tokens.AccessToken); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestValidateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "u-2", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService("test-secret", mock)
	tokens, err := svc.GenerateTokens(context.Background(), "u-2")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).AddRow("u-2", time.Now().Add(time.Hour)))

	userID, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken)
	if err != nil || userID != "u-2" {
		t.Fatalf("refresh validate: %v %q", err, userID)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnError(errors.New("not found"))

	if _, err := svc.ValidateRefreshToken(context.Background(), tokens.RefreshToken); err == nil {
		t.Fatalf("expected missing refresh token error")
	}
}
