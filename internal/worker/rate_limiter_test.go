package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLimiter(t *testing.T, perSecond int) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, perSecond)
}

func TestCheckAndIncrementAllowsWithinLimit(t *testing.T) {
	limiter := testLimiter(t, 5)

	for i := 0; i < 5; i++ {
		allowed, _, err := limiter.CheckAndIncrement(context.Background(), "org-1")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("call %d denied, want allowed within limit", i)
		}
	}
}

func TestCheckAndIncrementDeniesOverLimit(t *testing.T) {
	limiter := testLimiter(t, 1)

	denials := 0
	// Rapid calls span at most two one-second buckets, so a limit of 1
	// guarantees denials in a burst of ten.
	for i := 0; i < 10; i++ {
		allowed, waitTime, err := limiter.CheckAndIncrement(context.Background(), "org-1")
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !allowed {
			denials++
			if waitTime <= 0 || waitTime > time.Second {
				t.Errorf("waitTime = %v, want in (0, 1s]", waitTime)
			}
		}
	}
	if denials == 0 {
		t.Error("no denials in a burst of 10 with limit 1")
	}
}

func TestRateLimiterIsolatesOrgs(t *testing.T) {
	limiter := testLimiter(t, 1)

	if allowed, _, _ := limiter.CheckAndIncrement(context.Background(), "org-a"); !allowed {
		t.Fatal("org-a first call denied")
	}
	if allowed, _, err := limiter.CheckAndIncrement(context.Background(), "org-b"); err != nil || !allowed {
		t.Errorf("org-b denied (allowed=%v err=%v): budgets must be per-org", allowed, err)
	}
}

func TestWaitBlocksUntilBucketRolls(t *testing.T) {
	limiter := testLimiter(t, 1)

	// Exhaust the current bucket, then Wait must come back once the next
	// one-second bucket opens.
	for {
		allowed, _, err := limiter.CheckAndIncrement(context.Background(), "org-1")
		if err != nil {
			t.Fatal(err)
		}
		if !allowed {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx, "org-1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Wait took %v, want under 2s", elapsed)
	}
}

func TestNewRateLimiterDefaultsPerSecond(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRateLimiter(client, 0)
	if limiter.perSecond != DefaultOrdersPerSecond {
		t.Errorf("perSecond = %d, want default %d", limiter.perSecond, DefaultOrdersPerSecond)
	}
}
