package citycache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soupbadger/rpi-space/internal/citycache"
	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
)

type stubResolver struct {
	city  fetch.City
	err   error
	calls atomic.Int32
}

func (s *stubResolver) ResolveCity(context.Context, model.GeoCoordinate) (fetch.City, error) {
	s.calls.Add(1)
	return s.city, s.err
}

type countingMetrics struct {
	results map[string]int
}

func (m *countingMetrics) ObserveCacheLookup(result string) {
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[result]++
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

var paris = model.GeoCoordinate{Lat: 48.8566, Lon: 2.3522}

func TestKeyRoundsToTwoDecimals(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "citycache:48.86:2.35", citycache.Key(paris))
	assert.Equal(t, "citycache:-33.87:151.21", citycache.Key(model.GeoCoordinate{Lat: -33.8688, Lon: 151.2093}))
}

func TestCacheHitSkipsResolver(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	next := &stubResolver{city: fetch.City{Name: "Paris", Found: true}}
	metrics := &countingMetrics{}
	cache := citycache.New(rdb, next, citycache.WithMetrics(metrics))
	ctx := context.Background()

	first, err := cache.ResolveCity(ctx, paris)
	require.NoError(t, err)
	second, err := cache.ResolveCity(ctx, paris)
	require.NoError(t, err)

	assert.Equal(t, fetch.City{Name: "Paris", Found: true}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, 1, metrics.results[citycache.ResultMiss])
	assert.Equal(t, 1, metrics.results[citycache.ResultHit])

	got, err := mr.Get(citycache.Key(paris))
	require.NoError(t, err)
	assert.Equal(t, "Paris", got)
}

func TestCacheEntriesExpire(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	next := &stubResolver{city: fetch.City{Name: "Paris", Found: true}}
	cache := citycache.New(rdb, next, citycache.WithTTL(time.Minute))

	_, err := cache.ResolveCity(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(citycache.Key(paris)))

	mr.FastForward(2 * time.Minute)
	_, err = cache.ResolveCity(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCacheDoesNotStoreFailuresOrUnresolved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		city fetch.City
		err  error
	}{
		{name: "unresolved", city: fetch.City{}},
		{name: "network", err: &fetch.Error{Kind: fetch.KindNetwork, Err: errors.New("503")}},
		{name: "parse", err: &fetch.Error{Kind: fetch.KindParse, Err: errors.New("bad json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mr, rdb := newRedis(t)
			next := &stubResolver{city: tt.city, err: tt.err}
			cache := citycache.New(rdb, next)

			got, err := cache.ResolveCity(context.Background(), paris)
			assert.Equal(t, tt.city, got)
			assert.Equal(t, fetch.KindOf(tt.err), fetch.KindOf(err))
			assert.False(t, mr.Exists(citycache.Key(paris)))

			_, _ = cache.ResolveCity(context.Background(), paris)
			assert.Equal(t, int32(2), next.calls.Load())
		})
	}
}

func TestCacheFallsBackWhenRedisIsDown(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	next := &stubResolver{city: fetch.City{Name: "Paris", Found: true}}
	metrics := &countingMetrics{}
	cache := citycache.New(rdb, next, citycache.WithMetrics(metrics), citycache.WithLogger(logging.Noop()))

	got, err := cache.ResolveCity(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, "Paris", got.Name)
	assert.Equal(t, 1, metrics.results[citycache.ResultError])
}

func TestConnect(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	client, err := citycache.Connect(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
}

func TestConnectGivesUp(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = citycache.Connect(context.Background(), &redis.Options{Addr: addr, MaxRetries: -1}, 300*time.Millisecond, nil)
	require.Error(t, err)
}
