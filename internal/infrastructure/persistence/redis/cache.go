// Package redis implements the summary cache of the analytics service.
// Finished summaries are stored as JSON documents under per-trainee keys so
// that one trainee's cache can be dropped with a single pattern delete.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/retry"
)

var (
	ErrCacheMiss          = errors.New("cache: key not found")
	ErrCacheConnection    = errors.New("cache: connection failed")
	ErrCacheSerialization = errors.New("cache: serialization failed")
	ErrCacheInvalidTTL    = errors.New("cache: invalid TTL")
	ErrCacheKeyEmpty      = errors.New("cache: key cannot be empty")
	ErrCacheNilValue      = errors.New("cache: value cannot be nil")
)

const (
	// DefaultKeyPrefix namespaces the service's keys.
	DefaultKeyPrefix = "eyd:"

	// PrefixSummary is the segment under which summaries are stored.
	PrefixSummary = "summary:"

	// TTLSummary is the default lifetime of a cached summary. The refresh
	// worker rewrites entries well before they expire.
	TTLSummary = time.Hour

	scanBatch = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config describes the client. URL, when set, wins over Host, Port,
// Password and DB; PoolSize still applies on top of it.
type Config struct {
	URL      string
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolTimeout  time.Duration

	KeyPrefix string
}

// DefaultConfig targets a local server.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		KeyPrefix:    DefaultKeyPrefix,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Options builds the go-redis client options.
func (c Config) Options() (*redis.Options, error) {
	if c.URL == "" {
		return &redis.Options{
			Addr:         c.Addr(),
			Password:     c.Password,
			DB:           c.DB,
			PoolSize:     c.PoolSize,
			MinIdleConns: c.MinIdleConns,
			MaxRetries:   c.MaxRetries,
			DialTimeout:  c.DialTimeout,
			ReadTimeout:  c.ReadTimeout,
			WriteTimeout: c.WriteTimeout,
			PoolTimeout:  c.PoolTimeout,
		}, nil
	}

	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	return opts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a thin byte and JSON layer over a go-redis client.
type Cache struct {
	client *redis.Client
	prefix string
}

// NewCache connects to Redis, retrying while the server starts up.
func NewCache(ctx context.Context, cfg Config, log *logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.Nop()
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	waiting := func(attempt int, err error, delay time.Duration) {
		log.Warn("redis not ready",
			logger.Int("attempt", attempt), logger.Err(err), logger.Duration("retry_in", delay))
	}
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := retry.StartupRetrier(waiting).Do(ctx, ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return NewCacheFromClient(client, cfg.KeyPrefix), nil
}

// NewCacheFromClient wraps an existing client. An empty prefix means
// DefaultKeyPrefix.
func NewCacheFromClient(client *redis.Client, prefix string) *Cache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{client: client, prefix: prefix}
}

// Prefix returns the key namespace.
func (c *Cache) Prefix() string { return c.prefix }

// Close closes the client.
func (c *Cache) Close() error { return c.client.Close() }

// Ping implements the health check probe.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Set stores value as JSON. A zero ttl keeps the key forever.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if value == nil {
		return ErrCacheNilValue
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.SetBytes(ctx, key, data, ttl)
}

// SetBytes stores an already encoded document.
func (c *Cache) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	switch {
	case key == "":
		return ErrCacheKeyEmpty
	case data == nil:
		return ErrCacheNilValue
	case ttl < 0:
		return ErrCacheInvalidTTL
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetBytes returns the document under key, or ErrCacheMiss.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

// TTL returns the remaining lifetime of key. Redis reports -2 for a missing
// key and -1 for a key without expiry.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	if key == "" {
		return 0, ErrCacheKeyEmpty
	}
	return c.client.TTL(ctx, key).Result()
}

// DeleteByPattern unlinks every key matching the glob pattern and returns
// how many went away. Keys are found with SCAN and unlinked in batches.
func (c *Cache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, ErrCacheKeyEmpty
	}

	removed := 0
	batch := make([]string, 0, scanBatch)
	unlink := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Unlink(ctx, batch...).Result()
		removed += int(n)
		batch = batch[:0]
		return err
	}

	it := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for it.Next(ctx) {
		if batch = append(batch, it.Val()); len(batch) == scanBatch {
			if err := unlink(); err != nil {
				return removed, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return removed, err
	}
	return removed, unlink()
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

// SummaryKey is <prefix>summary:<trainee>:<kind>[:<variant>]. The trainee
// comes before the kind so TraineePattern matches one trainee and nothing
// else.
func SummaryKey(prefix, kind, traineeID, variant string) string {
	key := prefix + PrefixSummary + traineeID + ":" + kind
	if variant != "" {
		key += ":" + variant
	}
	return key
}

// TraineePattern matches every summary key of a trainee. Glob
// metacharacters in the id are escaped, so the pattern never reaches
// another trainee's keys.
func TraineePattern(prefix, traineeID string) string {
	return prefix + PrefixSummary + globEscaper.Replace(traineeID) + ":*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
