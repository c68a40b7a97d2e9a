package httpapi

import (
	"context"
	"testing"
	"time"

	"glowbooks/backend/internal/cache"
	"glowbooks/backend/internal/domain"
	"glowbooks/backend/internal/service"
	"glowbooks/backend/internal/store/memory"
)

func newTestAuth(ttl time.Duration) *AuthManager {
	svc := service.New(memory.NewSeeded(), cache.NoopCashSummaryCache{}, service.Options{})
	return NewAuthManager("unit-test-secret-key-0123456789ab", ttl, svc)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	auth := newTestAuth(time.Hour)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role, got %s", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	auth := newTestAuth(time.Hour)

	if _, err := auth.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to fail")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := newTestAuth(time.Hour)

	expired, err := auth.sign("admin", "admin", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	auth := newTestAuth(time.Hour)
	other := NewAuthManager("another-secret-key-entirely-here", time.Hour, nil)

	token, err := other.sign("admin", "admin", time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to fail")
	}
}
