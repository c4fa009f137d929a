package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// SubmitRateLimit caps state-changing requests per signer per minute. With
// Redis the window is shared across instances; without it each process keeps
// its own token buckets.
func SubmitRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	local := newLocalLimiter(maxPerMin)
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		id := SignerFrom(c).String()
		if id == "" {
			id = c.IP()
		}

		if cache == nil {
			if !local.allow(id) {
				return fiber.NewError(http.StatusTooManyRequests, "too many submissions, try again later")
			}
			return c.Next()
		}

		key := "rl:submit:" + id
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many submissions, try again later")
		}
		return c.Next()
	}
}

// visitorIdleTTL is how long an unused bucket is kept. A bucket idle for a
// full minute has refilled, so dropping it later never grants extra burst.
const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	perMin    int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, visitors: make(map[string]*visitor), now: time.Now}
}

func (l *localLimiter) allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= visitorIdleTTL {
		l.evictIdle(now)
	}
	v, ok := l.visitors[id]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.perMin)}
		l.visitors[id] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *localLimiter) evictIdle(now time.Time) {
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) >= visitorIdleTTL {
			delete(l.visitors, id)
		}
	}
	l.lastSweep = now
}

