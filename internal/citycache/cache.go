// Package citycache puts a Redis read-through cache in front of a city
// resolver so repeated passes over the same area skip the geocoding API.
package citycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/soupbadger/rpi-space/internal/fetch"
	"github.com/soupbadger/rpi-space/internal/logging"
	"github.com/soupbadger/rpi-space/model"
)

const (
	// DefaultTTL is how long a resolved name stays cached.
	DefaultTTL = 10 * time.Minute

	keyPrefix = "citycache:"
)

// Lookup results reported to Metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Resolver resolves a coordinate to a city name.
type Resolver interface {
	ResolveCity(ctx context.Context, coord model.GeoCoordinate) (fetch.City, error)
}

// Metrics records cache lookup results.
type Metrics interface {
	ObserveCacheLookup(result string)
}

// Cache wraps a Resolver. Only found names are cached; failures and
// unresolvable results always go to the wrapped resolver. A Redis failure is
// logged and treated as a miss.
type Cache struct {
	rdb     redis.Cmdable
	next    Resolver
	ttl     time.Duration
	log     logging.Logger
	metrics Metrics
}

// Option customises a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics reports hits and misses to m.
func WithMetrics(m Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New returns a cache in front of next.
func New(rdb redis.Cmdable, next Resolver, opts ...Option) *Cache {
	c := &Cache{
		rdb:  rdb,
		next: next,
		ttl:  DefaultTTL,
		log:  logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key for coord. Coordinates are rounded to two
// decimals, roughly a kilometre at the equator.
func Key(coord model.GeoCoordinate) string {
	return fmt.Sprintf("%s%.2f:%.2f", keyPrefix, coord.Lat, coord.Lon)
}

// ResolveCity implements the resolver interface.
func (c *Cache) ResolveCity(ctx context.Context, coord model.GeoCoordinate) (fetch.City, error) {
	log := logging.FromContextOr(ctx, c.log)
	key := Key(coord)

	name, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil && name != "":
		c.observe(ResultHit)
		log.Debug(ctx, "city cache hit", logging.String("key", key), logging.String("city", name))
		return fetch.City{Name: name, Found: true}, nil
	case err == nil, errors.Is(err, redis.Nil):
		c.observe(ResultMiss)
	default:
		c.observe(ResultError)
		log.Warn(ctx, "city cache read failed", logging.String("key", key), logging.Err(err))
	}

	city, err := c.next.ResolveCity(ctx, coord)
	if err != nil || !city.Found {
		return city, err
	}
	if err := c.rdb.Set(ctx, key, city.Name, c.ttl).Err(); err != nil {
		log.Warn(ctx, "city cache write failed", logging.String("key", key), logging.Err(err))
	}
	return city, nil
}

func (c *Cache) observe(result string) {
	if c.metrics != nil {
		c.metrics.ObserveCacheLookup(result)
	}
}

// Connect opens a client for opts and pings it with exponential backoff
// until it answers or maxElapsed passes. A zero maxElapsed pings once.
func Connect(ctx context.Context, opts *redis.Options, maxElapsed time.Duration, log logging.Logger) (*redis.Client, error) {
	if log == nil {
		log = logging.Noop()
	}
	client := redis.NewClient(opts)

	retry := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn(ctx, "redis not ready, retrying",
				logging.String("addr", opts.Addr),
				logging.Duration("retry_in", next),
				logging.Err(err),
			)
		}),
	}
	if maxElapsed > 0 {
		retry = append(retry, backoff.WithMaxElapsedTime(maxElapsed))
	} else {
		retry = append(retry, backoff.WithMaxTries(1))
	}

	_, err := backoff.Retry(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	}, retry...)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}
