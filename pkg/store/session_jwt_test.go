package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestSessionStore(t *testing.T, revoker TokenRevoker, opts JWTOptions) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testSecret, time.Hour, revoker, opts)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	ctx := context.Background()

	token, err := s.NewSession(ctx, "user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(ctx, token)
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("resolve token: user=%q ok=%v err=%v", userID, ok, err)
	}
}

func TestJWTSessionStoreEnforcesAudience(t *testing.T) {
	signing := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-a"})
	verify := newTestSessionStore(t, nil, JWTOptions{Issuer: "issuer-a", Audience: "aud-b"})

	token, err := signing.NewSession(context.Background(), "user-claim")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, _, err := verify.GetUserIDByToken(context.Background(), token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected audience mismatch to fail, got %v", err)
	}
}

func TestJWTSessionStoreRevokesOnDelete(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker(), JWTOptions{})
	ctx := context.Background()

	token, err := s.NewSession(ctx, "user-revoke")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(ctx, token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(ctx, token); !errors.Is(err, ErrTokenRevoked) || ok {
		t.Fatalf("expected revoked token to fail, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRejectsExpiredToken(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{Leeway: time.Second})
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }
	token, err := s.NewSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	if _, ok, err := s.GetUserIDByToken(context.Background(), token); err == nil || ok {
		t.Fatalf("expected expired token to fail")
	}
}

func TestJWTSessionStoreRejectsTamperedToken(t *testing.T) {
	s := newTestSessionStore(t, nil, JWTOptions{})
	token, err := s.NewSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	other, err := NewJWTSessionStore(strings.Repeat("z", 32), time.Hour, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	if _, _, err := other.GetUserIDByToken(context.Background(), token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
	if _, _, err := s.GetUserIDByToken(context.Background(), ""); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("empty token: %v", err)
	}
}

func TestNewJWTSessionStoreRejectsShortSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}
