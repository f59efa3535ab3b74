package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"compforge/models"
)

const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "user:"
	cacheTTL         = time.Hour
)

// Cache is a best-effort side channel over redis. The document store stays
// the source of truth: every failure here, including a nil client, degrades
// to a cache miss and never propagates.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetSession returns the cached session, or nil on any miss or failure.
func (c *Cache) GetSession(ctx context.Context, id uuid.UUID) *models.ChatSession {
	if c.rdb == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, sessionKeyPrefix+id.String()).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "key", sessionKeyPrefix+id.String(), "error", err)
		}
		return nil
	}
	var session models.ChatSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		slog.Warn("cache entry unreadable", "key", sessionKeyPrefix+id.String(), "error", err)
		return nil
	}
	return &session
}

func (c *Cache) SetSession(ctx context.Context, session *models.ChatSession) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return
	}
	key := sessionKeyPrefix + session.ID.String()
	if err := c.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) DeleteSession(ctx context.Context, id uuid.UUID) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, sessionKeyPrefix+id.String()).Err(); err != nil {
		slog.Warn("cache del failed", "key", sessionKeyPrefix+id.String(), "error", err)
	}
}

func (c *Cache) SetUser(ctx context.Context, user *models.User) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	key := userKeyPrefix + user.ID.String()
	if err := c.rdb.Set(ctx, key, raw, cacheTTL).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}
