package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	return NewStoreWithClient(client, ttl), server
}

func TestCreateLookupRoundTrip(t *testing.T) {
	sessionStore, _ := newTestStore(t, time.Hour)

	token, err := sessionStore.Create(context.Background(), "alice", "PetOwner")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	stored, err := sessionStore.Lookup(context.Background(), token)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Username != "alice" || stored.Role != "PetOwner" {
		t.Fatalf("unexpected session payload: %+v", stored)
	}
}

func TestLookupUnknownTokenFails(t *testing.T) {
	sessionStore, _ := newTestStore(t, time.Hour)
	if _, err := sessionStore.Lookup(context.Background(), "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRevokeDeletesSession(t *testing.T) {
	sessionStore, _ := newTestStore(t, time.Hour)

	token, err := sessionStore.Create(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := sessionStore.Revoke(context.Background(), token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := sessionStore.Lookup(context.Background(), token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after revoke, got %v", err)
	}
}

func TestSessionExpiresWithTTL(t *testing.T) {
	sessionStore, server := newTestStore(t, time.Minute)

	token, err := sessionStore.Create(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	server.FastForward(2 * time.Minute)
	if _, err := sessionStore.Lookup(context.Background(), token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired session to be gone, got %v", err)
	}
}
