// Package session keeps opaque refresh sessions in Redis so a login
// can be renewed or revoked independently of the short-lived JWT.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "session:"
	defaultTTL = 30 * 24 * time.Hour
)

var (
	// ErrNotFound indicates the refresh token has no live session.
	ErrNotFound = errors.New("session: not found")
)

// Session is the payload stored for one refresh token.
type Session struct {
	Username  string    `json:"username"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists refresh sessions in Redis with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

// NewStore connects to Redis at redisURL and verifies the connection.
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("session: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: connect to redis: %w", err)
	}
	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient builds a store from an existing Redis client.
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
		clock:  time.Now,
	}
}

// Create mints an opaque refresh token and stores the session under it.
func (s *Store) Create(ctx context.Context, username, role string) (string, error) {
	if username == "" {
		return "", errors.New("session: username is required")
	}
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("session: generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	payload, err := json.Marshal(Session{
		Username:  username,
		Role:      role,
		CreatedAt: s.clock().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("session: encode: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: save: %w", err)
	}
	return token, nil
}

// Lookup resolves a refresh token to its session.
func (s *Store) Lookup(ctx context.Context, token string) (Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: lookup: %w", err)
	}
	var stored Session
	if err := json.Unmarshal(payload, &stored); err != nil {
		return Session{}, fmt.Errorf("session: decode: %w", err)
	}
	return stored, nil
}

// Revoke deletes the session for token. Revoking an unknown token is
// not an error.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}
