package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/fairyhunter13/page-stats-service/internal/model"
)

// Counter records live in one hash per page. The Lua scripts below are the
// conditional-update primitives: each runs atomically on the server, so
// concurrent consumers never race between the existence/guard check and the
// write.
var (
	createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "posts_count", 0, "likes_count", 0, "followers_count", 0)
return 1`)

	incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], 1)`)

	// -1: no record, -2: guard rejected. Counters are non-negative, so the
	// sentinels cannot collide with a real HINCRBY result.
	decrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local v = tonumber(redis.call("HGET", KEYS[1], ARGV[1]))
if v == nil or v <= 0 then
  return -2
end
return redis.call("HINCRBY", KEYS[1], ARGV[1], -1)`)
)

// RedisStore implements Store on a Redis hash per page.
type RedisStore struct {
	c *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(c *redis.Client) *RedisStore {
	return &RedisStore{c: c}
}

func pageKey(pageID int64) string {
	return fmt.Sprintf("page:%d", pageID)
}

// Create inserts a zero-valued record unless one already exists.
func (s *RedisStore) Create(ctx context.Context, pageID int64) error {
	created, err := createScript.Run(ctx, s.c, []string{pageKey(pageID)}).Int64()
	if err != nil {
		return fmt.Errorf("redis create page %d: %w", pageID, err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Increment atomically adds 1 to the field's counter.
func (s *RedisStore) Increment(ctx context.Context, pageID int64, field model.Field) error {
	name, ok := field.CounterName()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCounter, field)
	}
	res, err := incrScript.Run(ctx, s.c, []string{pageKey(pageID)}, name).Int64()
	if err != nil {
		return fmt.Errorf("redis increment %s for page %d: %w", name, pageID, err)
	}
	if res == -1 {
		return ErrNotFound
	}
	return nil
}

// Decrement atomically subtracts 1, guarded by current value > 0.
func (s *RedisStore) Decrement(ctx context.Context, pageID int64, field model.Field) error {
	name, ok := field.CounterName()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCounter, field)
	}
	res, err := decrScript.Run(ctx, s.c, []string{pageKey(pageID)}, name).Int64()
	if err != nil {
		return fmt.Errorf("redis decrement %s for page %d: %w", name, pageID, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case -2:
		return ErrConditionFailed
	}
	return nil
}

// Get returns the full counter record.
func (s *RedisStore) Get(ctx context.Context, pageID int64) (model.Stats, error) {
	fields, err := s.c.HGetAll(ctx, pageKey(pageID)).Result()
	if err != nil {
		return model.Stats{}, fmt.Errorf("redis get page %d: %w", pageID, err)
	}
	if len(fields) == 0 {
		return model.Stats{}, ErrNotFound
	}
	st := model.Stats{PageID: pageID}
	for name, raw := range fields {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.Stats{}, fmt.Errorf("redis get page %d: bad %s value %q", pageID, name, raw)
		}
		switch name {
		case "posts_count":
			st.PostsCount = v
		case "likes_count":
			st.LikesCount = v
		case "followers_count":
			st.FollowersCount = v
		}
	}
	return st, nil
}
