package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Achyut-shekhar/Attendx/internal/models"
	appErrors "github.com/Achyut-shekhar/Attendx/pkg/errors"
)

// SessionCacheRepository keeps the active session for each generated
// attendance code in Redis so that code submissions skip a database
// round-trip on the hot path. A nil client degrades to pass-through.
type SessionCacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSessionCacheRepository constructs a session cache repository.
func NewSessionCacheRepository(client *redis.Client, logger *zap.Logger) *SessionCacheRepository {
	return &SessionCacheRepository{client: client, logger: logger}
}

func codeKey(code string) string {
	return fmt.Sprintf("attendx:session:code:%s", code)
}

// GetByCode returns the cached session for an attendance code.
func (r *SessionCacheRepository) GetByCode(ctx context.Context, code string) (*models.Session, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, codeKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get code %s: %w", code, err)
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("unmarshal cached session for code %s: %w", code, err)
	}

	return &session, nil
}

// SetByCode stores the session under its attendance code with a TTL.
func (r *SessionCacheRepository) SetByCode(ctx context.Context, code string, session *models.Session, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session for code %s: %w", code, err)
	}

	if err := r.client.Set(ctx, codeKey(code), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set code %s: %w", code, err)
	}

	return nil
}

// DeleteByCode evicts a code's cached session, typically on session close.
func (r *SessionCacheRepository) DeleteByCode(ctx context.Context, code string) error {
	if r.client == nil {
		return nil
	}

	if err := r.client.Del(ctx, codeKey(code)).Err(); err != nil {
		return fmt.Errorf("redis delete code %s: %w", code, err)
	}

	return nil
}

// Close releases the underlying Redis connection if present.
func (r *SessionCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
