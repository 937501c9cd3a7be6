package auth

import (
	"context"
	"testing"
	"time"

	apperrors "parkly/pkg/errors"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
}

func TestIdentityContextRoundtrip(t *testing.T) {
	identity := Identity{UserID: "507f1f77bcf86cd799439011", Role: RoleDriver}
	ctx := WithIdentity(context.Background(), identity)

	got, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("expected identity in context")
	}
	if got != identity {
		t.Errorf("expected %+v, got %+v", identity, got)
	}

	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("empty context must not carry an identity")
	}
}

func TestRequireIdentity(t *testing.T) {
	_, err := RequireIdentity(context.Background())
	assertCode(t, err, apperrors.CodeUnauthorized)

	_, err = RequireIdentity(WithIdentity(context.Background(), Identity{}))
	assertCode(t, err, apperrors.CodeUnauthorized)

	id, err := RequireIdentity(WithIdentity(context.Background(), Identity{UserID: "507f1f77bcf86cd799439011", Role: RoleOwner}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Role != RoleOwner {
		t.Errorf("expected role %s, got %s", RoleOwner, id.Role)
	}
}

func TestRequireRole(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "507f1f77bcf86cd799439011", Role: RoleOwner})

	if _, err := RequireRole(ctx, RoleOwner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := RequireRole(ctx, RoleAdmin, RoleOwner); err != nil {
		t.Fatalf("unexpected error for multi-role check: %v", err)
	}

	_, err := RequireRole(ctx, RoleAdmin)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = RequireRole(context.Background(), RoleAdmin)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestIsAdmin(t *testing.T) {
	if (Identity{Role: RoleDriver}).IsAdmin() {
		t.Error("driver must not be admin")
	}
	if !(Identity{Role: RoleAdmin}).IsAdmin() {
		t.Error("admin role not recognized")
	}
}

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatal("hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("s3cret-pass", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong-pass", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundtrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Issue("507f1f77bcf86cd799439011", RoleDriver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	identity, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "507f1f77bcf86cd799439011" {
		t.Errorf("expected subject roundtrip, got %s", identity.UserID)
	}
	if identity.Role != RoleDriver {
		t.Errorf("expected role roundtrip, got %s", identity.Role)
	}
}

func TestVerify_RejectsForeignSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Hour).Issue("507f1f77bcf86cd799439011", RoleDriver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = NewTokenManager("secret-b", time.Hour).Verify(token)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Issue("507f1f77bcf86cd799439011", RoleDriver)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = tm.Verify(token)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	_, err := tm.Verify("not-a-token")
	assertCode(t, err, apperrors.CodeUnauthorized)
}
