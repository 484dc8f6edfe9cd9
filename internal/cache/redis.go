package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/redis/go-redis/v9"
)

// missMarker is stored for lookups that found nothing, so that a miss is
// not repeated against the sites until it expires.
const missMarker = "-"

type RedisCache struct {
	client    *redis.Client
	lookupTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		cfg.LookupTTL(),
	)
}

func NewRedisCacheWithClient(client *redis.Client, lookupTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, lookupTTL: lookupTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetLookup returns the cached times for a flight on a date. The bool is
// false on a cache miss; a cached negative result is (nil, true, nil).
func (c *RedisCache) GetLookup(ctx context.Context, source, code string, date time.Time) (*domain.FlightTimes, bool, error) {
	data, err := c.client.Get(ctx, lookupKey(source, code, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if string(data) == missMarker {
		return nil, true, nil
	}

	var times domain.FlightTimes
	if err := json.Unmarshal(data, &times); err != nil {
		return nil, false, err
	}
	return &times, true, nil
}

// SetLookup caches times, or a negative result when times is nil.
func (c *RedisCache) SetLookup(ctx context.Context, source, code string, date time.Time, times *domain.FlightTimes) error {
	var payload []byte
	if times == nil || times.Empty() {
		payload = []byte(missMarker)
	} else {
		var err error
		if payload, err = json.Marshal(times); err != nil {
			return err
		}
	}
	return c.client.Set(ctx, lookupKey(source, code, date), payload, c.lookupTTL).Err()
}

func (c *RedisCache) AcquireListLock(ctx context.Context, code string, date time.Time, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, listLockKey(code, date), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseListLock(ctx context.Context, code string, date time.Time) error {
	return c.client.Del(ctx, listLockKey(code, date)).Err()
}

func lookupKey(source, code string, date time.Time) string {
	return fmt.Sprintf("cache:lookup:%s:%s:%s", source, code, date.Format("20060102"))
}

func listLockKey(code string, date time.Time) string {
	return fmt.Sprintf("lock:list:%s:%s", code, date.Format("20060102"))
}
