package middleware

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func rateLimitedApp(cache *redis.Client, perMin int) *fiber.App {
	app := fiber.New()
	app.Use(fakeSigner)
	app.Use(SubmitRateLimit(cache, perMin))
	app.Post("/wagers/:id/refund", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestSubmitRateLimitWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := rateLimitedApp(cache, 2)
	for i := 0; i < 2; i++ {
		if status, _ := post(t, app, "/wagers/1/refund", testSigner(1), ""); status != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, status)
		}
	}
	if status, _ := post(t, app, "/wagers/1/refund", testSigner(1), ""); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if status, _ := post(t, app, "/wagers/1/refund", testSigner(2), ""); status != fiber.StatusOK {
		t.Fatalf("other signer throttled: %d", status)
	}
	if ttl := mr.TTL("rl:submit:" + testSigner(1)); ttl <= 0 {
		t.Fatalf("expected window expiry, got %v", ttl)
	}
}

func TestSubmitRateLimitInProcess(t *testing.T) {
	app := rateLimitedApp(nil, 3)
	for i := 0; i < 3; i++ {
		if status, _ := post(t, app, "/wagers/1/refund", testSigner(1), ""); status != fiber.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, status)
		}
	}
	if status, _ := post(t, app, "/wagers/1/refund", testSigner(1), ""); status != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", status)
	}
	if status, _ := post(t, app, "/wagers/1/refund", testSigner(3), ""); status != fiber.StatusOK {
		t.Fatalf("other signer throttled: %d", status)
	}
}

func TestLocalLimiterEvictsIdleVisitors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newLocalLimiter(2)
	l.now = func() time.Time { return now }

	for i := byte(1); i <= 50; i++ {
		if !l.allow(testSigner(i)) {
			t.Fatalf("first request of signer %d refused", i)
		}
	}
	if len(l.visitors) != 50 {
		t.Fatalf("expected 50 tracked visitors, got %d", len(l.visitors))
	}

	now = now.Add(visitorIdleTTL / 2)
	l.allow(testSigner(1))
	l.allow(testSigner(1))
	if l.allow(testSigner(1)) {
		t.Fatal("active signer not throttled")
	}

	now = now.Add(visitorIdleTTL / 2)
	l.allow(testSigner(99))
	// only the signer seen recently and the newcomer survive the sweep
	if len(l.visitors) != 2 {
		t.Fatalf("expected idle visitors evicted, %d remain", len(l.visitors))
	}
	if _, ok := l.visitors[testSigner(1)]; !ok {
		t.Fatal("recently active signer was evicted")
	}
}
