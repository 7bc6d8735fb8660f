package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "furryfriends-auth",
		Audience:      "furryfriends-api",
		TokenTTL:      30 * time.Minute,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(nil)

	token, expiresIn, err := issuer.IssueSessionToken("alice", "PetOwner")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds: %d", expiresIn)
	}

	username, role, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if username != "alice" || role != "PetOwner" {
		t.Fatalf("unexpected claims: %q %q", username, role)
	}
}

func TestIssueRequiresUsername(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueSessionToken("", "PetOwner"); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	issueTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return issueTime }
	issuer := newTestIssuer(clock)

	token, _, err := issuer.IssueSessionToken("alice", "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	issueTime = issueTime.Add(31 * time.Minute)
	if _, _, err := issuer.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(nil)
	foreign := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("other-secret"),
		Issuer:        "furryfriends-auth",
		Audience:      "furryfriends-api",
	})

	token, _, err := foreign.IssueSessionToken("alice", "")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, _, err := issuer.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}
