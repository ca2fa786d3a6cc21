package httpx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisRateLimiterCountsPerKey(t *testing.T) {
	srv := miniredis.RunT(t)
	rl, err := NewRedisRateLimiter(context.Background(), srv.Addr(), "", 0, quietLogger())
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if d := rl.Allow("wizard|ip:10.0.0.1", 3, time.Minute); !d.allowed {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	d := rl.Allow("wizard|ip:10.0.0.1", 3, time.Minute)
	if d.allowed || d.count != 4 {
		t.Fatalf("expected fourth request limited, got %+v", d)
	}
	if ttl := srv.TTL(redisRateLimitPrefix + "wizard|ip:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("expected window ttl, got %s", ttl)
	}

	srv.FastForward(time.Minute + time.Second)
	if d := rl.Allow("wizard|ip:10.0.0.1", 3, time.Minute); !d.allowed {
		t.Fatal("expected new window to allow")
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	srv := miniredis.RunT(t)
	rl, err := NewRedisRateLimiter(context.Background(), srv.Addr(), "", 0, quietLogger())
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer rl.Close()

	srv.SetError("READONLY")
	if d := rl.Allow("k", 1, time.Minute); !d.allowed {
		t.Fatal("expected limiter to allow when redis errors")
	}
}
