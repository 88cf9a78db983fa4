package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestNoopLocker(t *testing.T) {
	release, err := NoopLocker{}.Lock(context.Background(), "patient:PAT_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if release == nil {
		t.Fatal("expected non-nil release")
	}
	release()
}

func TestKey(t *testing.T) {
	if got := Key("patient:PAT_1"); got != "lock:patient:PAT_1" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestRedisLocker_UnavailableRedisProceeds(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer rdb.Close()

	locker := NewRedisLocker(rdb, zerolog.Nop())
	release, err := locker.Lock(context.Background(), "patient:PAT_1")
	if err != nil {
		t.Fatalf("expected best-effort fallback, got %v", err)
	}
	if release == nil {
		t.Fatal("expected non-nil release")
	}
	release()
}

func TestRedisLocker_CancelledContext(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release, err := NewRedisLocker(rdb, zerolog.Nop()).Lock(ctx, "patient:PAT_1")
	if err == nil {
		t.Error("expected context error")
	}
	if release == nil {
		t.Error("expected non-nil release even on error")
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not-a-url"); err == nil {
		t.Error("expected parse error")
	}
}
