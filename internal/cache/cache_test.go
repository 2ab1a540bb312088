package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/scout-sh/scout/internal/research"
)

func TestKeyNormalization(t *testing.T) {
	t.Parallel()

	a := research.Query{Topic: "  Vector Databases ", Depth: research.DepthModerate}
	b := research.Query{Topic: "vector databases", Depth: research.DepthModerate}
	if Key(a) != Key(b) {
		t.Errorf("case and whitespace should not split the cache: %s vs %s", Key(a), Key(b))
	}

	c := research.Query{Topic: "vector databases", Depth: research.DepthDeep}
	if Key(b) == Key(c) {
		t.Error("different depth tiers must not share a key")
	}

	if !strings.HasPrefix(Key(a), keyPrefix) {
		t.Errorf("key %q missing prefix", Key(a))
	}
}

func TestReportRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	c, err := New(ctx, host, port.Port(), "", 0, time.Minute, 5*time.Second)
	if err != nil {
		t.Fatalf("cache init: %v", err)
	}
	defer c.Close()

	q := research.Query{Topic: "raft consensus", Depth: research.DepthLight, IssuedAt: time.Now().UTC()}
	rpt := research.ResearchReport{
		ID:    "report-1",
		Query: q,
		Results: []research.CanonicalResult{{
			ID:        "r1",
			Title:     "Raft paper",
			Authority: 0.95,
			Body:      "In search of an understandable consensus algorithm.",
		}},
		CreatedAt: time.Now().UTC(),
	}

	if _, err := c.Get(ctx, q); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss before put, got %v", err)
	}
	if err := c.Put(ctx, rpt); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := c.Get(ctx, q)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != rpt.ID || len(got.Results) != 1 || got.Results[0].Title != "Raft paper" {
		t.Fatalf("cached report mangled: %+v", got)
	}

	if err := c.Invalidate(ctx, q); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.Get(ctx, q); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after invalidate, got %v", err)
	}
}
