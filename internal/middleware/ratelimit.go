// ratelimit.go enforces per-client request rate limits. Two backends exist:
// an in-process token bucket for single-node deployments, and a Redis-backed
// GCRA limiter (redis_rate) that shares the budget across replicas. The
// backend is selected from config: a non-empty redis_addr picks Redis.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/samsonhsy/dot-backend/internal/config"
)

// Decision is the outcome of a rate limit check for one request.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	// Stop releases background resources held by the limiter.
	Stop()
}

// NewLimiter builds a limiter from configuration. When RedisAddr is set the
// limit is enforced through Redis so all replicas share one budget; otherwise
// an in-process token bucket is used.
func NewLimiter(cfg config.RateLimitingConfig) Limiter {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &redisLimiter{
			client:  client,
			limiter: redis_rate.NewLimiter(client),
			limit: redis_rate.Limit{
				Rate:   cfg.RequestsPerMinute,
				Burst:  cfg.Burst,
				Period: time.Minute,
			},
		}
	}
	return newMemoryLimiter(cfg.RequestsPerMinute, cfg.Burst)
}

// redisLimiter enforces limits via redis_rate's GCRA implementation.
type redisLimiter struct {
	client  *redis.Client
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
}

func (rl *redisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := rl.limiter.Allow(ctx, key, rl.limit)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

func (rl *redisLimiter) Stop() {
	_ = rl.client.Close()
}

// bucketEntry tracks the token count for a single client.
type bucketEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// memoryLimiter is a token bucket limiter keyed by client. A background
// goroutine evicts entries idle for more than ten minutes.
type memoryLimiter struct {
	ratePerMinute int
	burst         int

	mu      sync.Mutex
	entries map[string]*bucketEntry
	stopCh  chan struct{}
	stopped sync.Once
}

func newMemoryLimiter(ratePerMinute, burst int) *memoryLimiter {
	if burst < 1 {
		burst = 1
	}
	ml := &memoryLimiter{
		ratePerMinute: ratePerMinute,
		burst:         burst,
		entries:       make(map[string]*bucketEntry),
		stopCh:        make(chan struct{}),
	}
	go ml.cleanup()
	return ml
}

func (ml *memoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.mu.Lock()
			now := time.Now()
			for key, entry := range ml.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(ml.entries, key)
				}
			}
			ml.mu.Unlock()
		case <-ml.stopCh:
			return
		}
	}
}

func (ml *memoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := time.Now()
	entry, exists := ml.entries[key]
	if !exists {
		// New client starts with a full burst.
		ml.entries[key] = &bucketEntry{
			tokens:     float64(ml.burst) - 1,
			lastUpdate: now,
		}
		return Decision{Allowed: true, Remaining: ml.burst - 1}, nil
	}

	elapsed := now.Sub(entry.lastUpdate)
	refill := elapsed.Seconds() * float64(ml.ratePerMinute) / 60.0
	entry.tokens = min(float64(ml.burst), entry.tokens+refill)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return Decision{Allowed: true, Remaining: int(entry.tokens)}, nil
	}

	return Decision{Allowed: false, Remaining: 0, RetryAfter: time.Minute}, nil
}

func (ml *memoryLimiter) Stop() {
	ml.stopped.Do(func() { close(ml.stopCh) })
}

// RateLimit returns a handler that checks every request against the limiter.
// Rejected requests get a 429 with a Retry-After header. If the limiter itself
// fails (e.g. Redis unreachable) the request is allowed through; availability
// wins over strictness here, and the failure is logged.
func RateLimit(limiter Limiter, requestsPerMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 60
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Remaining", "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		c.Next()
	}
}

// rateLimitKey identifies the client: authenticated user ID when present,
// otherwise the client IP.
func rateLimitKey(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
