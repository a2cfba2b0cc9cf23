package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// UserSessionKeyPrefix is the Redis key prefix for user->session mapping
	UserSessionKeyPrefix = "user_session:"
)

// SessionStore issues the bearer tokens the chat gateway authenticates with.
// A user holds at most one token; issuing a new one revokes the previous.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionDuration
	}
	return &SessionStore{redis: client, ttl: ttl}
}

// Create issues a fresh token for userID and resets the expiry timer.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	if err := s.InvalidateUser(ctx, userID); err != nil {
		return "", err
	}

	token, err := newSessionToken()
	if err != nil {
		return "", err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, SessionKeyPrefix+token, userID, s.ttl)
	pipe.Set(ctx, UserSessionKeyPrefix+userID, token, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to its user. Unknown or expired tokens return ok=false.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	userID, err := s.redis.Get(ctx, SessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("validate session: %w", err)
	}
	return userID, true, nil
}

// Refresh extends a live token by the full TTL.
func (s *SessionStore) Refresh(ctx context.Context, token string) error {
	userID, ok, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session not found")
	}
	pipe := s.redis.Pipeline()
	pipe.Expire(ctx, SessionKeyPrefix+token, s.ttl)
	pipe.Expire(ctx, UserSessionKeyPrefix+userID, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes a single token.
func (s *SessionStore) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	userID, err := s.redis.Get(ctx, SessionKeyPrefix+token).Result()
	if err == nil && userID != "" {
		s.redis.Del(ctx, UserSessionKeyPrefix+userID)
	}
	return s.redis.Del(ctx, SessionKeyPrefix+token).Err()
}

// InvalidateUser revokes whatever token userID currently holds.
func (s *SessionStore) InvalidateUser(ctx context.Context, userID string) error {
	token, err := s.redis.Get(ctx, UserSessionKeyPrefix+userID).Result()
	if err == nil && token != "" {
		s.redis.Del(ctx, SessionKeyPrefix+token)
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("lookup user session: %w", err)
	}
	return s.redis.Del(ctx, UserSessionKeyPrefix+userID).Err()
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
