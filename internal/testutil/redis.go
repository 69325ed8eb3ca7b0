package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTestRedisAddr = "localhost:6379"
	defaultTestRedisDB   = 9
)

// NewTestRedis connects to a dedicated Redis database for lease tests,
// skipping when Redis is unreachable. The database is flushed on cleanup.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = defaultTestRedisAddr
	}
	db := defaultTestRedisDB
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			t.Fatalf("parse TEST_REDIS_DB: %v", err)
		}
		db = parsed
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("skipping Redis integration tests: %v", err)
	}

	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})

	return rdb
}
