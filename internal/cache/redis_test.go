package cache

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/jcsyfill/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, time.Minute), mr
}

var listDate = time.Date(2024, time.December, 11, 0, 0, 0, 0, time.UTC)

func TestLookupCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	times, ok, err := c.GetLookup(context.Background(), "flightview", "CA983", listDate)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, times)
}

func TestLookupCache_RoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	sta := time.Date(2024, time.December, 11, 19, 40, 0, 0, time.UTC)

	require.NoError(t, c.SetLookup(ctx, "flightview", "CA983", listDate, &domain.FlightTimes{STA: &sta}))
	assert.True(t, mr.Exists("cache:lookup:flightview:CA983:20241211"))
	assert.Equal(t, time.Minute, mr.TTL("cache:lookup:flightview:CA983:20241211"))

	times, ok, err := c.GetLookup(ctx, "flightview", "CA983", listDate)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, times.STA)
	assert.True(t, sta.Equal(*times.STA))
}

func TestLookupCache_Negative(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetLookup(ctx, "flightstats", "CA983", listDate, nil))

	times, ok, err := c.GetLookup(ctx, "flightstats", "CA983", listDate)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, times)
}

func TestLookupCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetLookup(ctx, "flightstats", "CA983", listDate, nil))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.GetLookup(ctx, "flightstats", "CA983", listDate)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListLock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.AcquireListLock(ctx, "CA984", listDate, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AcquireListLock(ctx, "CA984", listDate, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseListLock(ctx, "CA984", listDate))

	ok, err = c.AcquireListLock(ctx, "CA984", listDate, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPing(t *testing.T) {
	c, mr := newTestCache(t)
	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}
