package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"civichero-be/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "session:"
	userPrefix = "session:user:"
)

// Cache persists session snapshots so a reload restores them without
// re-authenticating.
type Cache interface {
	Save(ctx context.Context, sess *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// SyncXP rewrites the XP of every live snapshot belonging to userID.
	SyncXP(ctx context.Context, userID string, xp int) error
}

// RedisCache keeps snapshots as JSON under session:<id>, expiring with the
// session. session:user:<userID> indexes the ids of each user's sessions.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Save(ctx context.Context, sess *Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrNoSession
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+sess.ID, data, ttl).Err(); err != nil {
		return apperr.Network("Session store unavailable", err)
	}

	index := userPrefix + sess.Profile.ID.Hex()
	if err := c.client.SAdd(ctx, index, sess.ID).Err(); err != nil {
		return apperr.Network("Session store unavailable", err)
	}
	// The index lives as long as the longest session in it.
	if cur, err := c.client.TTL(ctx, index).Result(); err == nil && cur < ttl {
		_ = c.client.Expire(ctx, index, ttl).Err()
	}
	return nil
}

func (c *RedisCache) Load(ctx context.Context, id string) (*Session, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, apperr.Network("Session store unavailable", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (c *RedisCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return apperr.Network("Session store unavailable", err)
	}
	return nil
}

func (c *RedisCache) SyncXP(ctx context.Context, userID string, xp int) error {
	index := userPrefix + userID
	ids, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return apperr.Network("Session store unavailable", err)
	}
	for _, id := range ids {
		sess, err := c.Load(ctx, id)
		if errors.Is(err, ErrNoSession) {
			c.client.SRem(ctx, index, id)
			continue
		}
		if err != nil {
			return err
		}
		sess.Profile.XPPoints = xp
		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		// XX keeps a concurrent logout from being undone.
		err = c.client.SetArgs(ctx, keyPrefix+id, data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
		if errors.Is(err, redis.Nil) {
			c.client.SRem(ctx, index, id)
			continue
		}
		if err != nil {
			return apperr.Network("Session store unavailable", err)
		}
	}
	return nil
}
