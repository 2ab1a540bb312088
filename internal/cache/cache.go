// Package cache keeps finished reports in Redis so a repeated query inside
// the TTL window skips the whole fan-out.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scout-sh/scout/internal/research"
)

// ErrMiss is returned by Get when the query has no cached report.
var ErrMiss = errors.New("cache: miss")

const (
	keyPrefix  = "scout:report:"
	defaultTTL = 24 * time.Hour
)

type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New connects to Redis and pings it so misconfiguration fails at startup,
// not on the first research run.
func New(ctx context.Context, host, port, password string, db int, ttl, timeout time.Duration) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		Password:    password,
		DB:          db,
		DialTimeout: timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed (%s:%s): %w", host, port, err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ReportCache{
		client: client,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[CACHE] ", log.LstdFlags),
	}, nil
}

// Key derives the cache key from what makes two runs interchangeable: the
// normalized topic and the depth tier. Case and surrounding whitespace do
// not split the cache.
func Key(q research.Query) string {
	topic := strings.ToLower(strings.TrimSpace(q.Topic))
	sum := sha256.Sum256([]byte(topic + "\x00" + string(q.Depth)))
	return keyPrefix + hex.EncodeToString(sum[:16])
}

func (c *ReportCache) Get(ctx context.Context, q research.Query) (research.ResearchReport, error) {
	raw, err := c.client.Get(ctx, Key(q)).Bytes()
	if errors.Is(err, redis.Nil) {
		return research.ResearchReport{}, ErrMiss
	}
	if err != nil {
		return research.ResearchReport{}, err
	}
	var rpt research.ResearchReport
	if err := json.Unmarshal(raw, &rpt); err != nil {
		// A corrupt entry behaves like a miss; the next Put overwrites it.
		c.logger.Printf("dropping corrupt cache entry for %q: %v", q.Topic, err)
		return research.ResearchReport{}, ErrMiss
	}
	return rpt, nil
}

func (c *ReportCache) Put(ctx context.Context, rpt research.ResearchReport) error {
	raw, err := json.Marshal(rpt)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(rpt.Query), raw, c.ttl).Err()
}

func (c *ReportCache) Invalidate(ctx context.Context, q research.Query) error {
	return c.client.Del(ctx, Key(q)).Err()
}

func (c *ReportCache) Close() error { return c.client.Close() }
