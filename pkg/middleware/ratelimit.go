package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/response"
	pkgredis "github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/redis"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Rate limit per second per key (0 = unlimited)
	RequestsPerSecond float64
	// Burst size (token bucket capacity)
	BurstSize int
	// KeyFunc derives the rate limit key from the request (default: client IP).
	// Webhook ingress keys on the tenant path so one noisy winery cannot
	// starve the others.
	KeyFunc func(c *gin.Context) string
	// Whether to use Redis for distributed rate limiting
	UseRedis bool
	// Redis client (required if UseRedis is true)
	RedisClient *pkgredis.Client
	// Key prefix for Redis
	KeyPrefix string
	// Cleanup interval for local rate limiter
	CleanupInterval time.Duration
	// Entry TTL for local rate limiter
	EntryTTL time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
		UseRedis:          false,
		KeyPrefix:         "ratelimit:",
		CleanupInterval:   time.Minute,
		EntryTTL:          time.Minute,
	}
}

// rateLimitEntry tracks rate limit state for a key
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// LocalRateLimiter implements in-memory token bucket rate limiting
type LocalRateLimiter struct {
	config  RateLimitConfig
	entries sync.Map
	stop    chan struct{}

	// Metrics
	totalAllowed  uint64
	totalRejected uint64
}

// NewLocalRateLimiter creates a new local rate limiter
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	rl := &LocalRateLimiter{
		config: config,
		stop:   make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a request should be allowed
func (rl *LocalRateLimiter) Allow(key string) bool {
	now := time.Now()

	// Get or create entry
	entry, _ := rl.entries.LoadOrStore(key, &rateLimitEntry{
		tokens:     float64(rl.config.BurstSize),
		lastUpdate: now,
	})
	e := entry.(*rateLimitEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	// Calculate tokens to add based on time elapsed
	elapsed := now.Sub(e.lastUpdate).Seconds()
	tokensToAdd := elapsed * rl.config.RequestsPerSecond
	e.tokens = min(float64(rl.config.BurstSize), e.tokens+tokensToAdd)
	e.lastUpdate = now

	// Check if we have tokens available
	if e.tokens >= 1 {
		e.tokens--
		atomic.AddUint64(&rl.totalAllowed, 1)
		return true
	}

	atomic.AddUint64(&rl.totalRejected, 1)
	return false
}

// GetStats returns rate limiter statistics
func (rl *LocalRateLimiter) GetStats() (allowed, rejected uint64) {
	return atomic.LoadUint64(&rl.totalAllowed), atomic.LoadUint64(&rl.totalRejected)
}

// cleanup periodically removes stale entries
func (rl *LocalRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-rl.config.EntryTTL)
			rl.entries.Range(func(key, value any) bool {
				e := value.(*rateLimitEntry)
				e.mu.Lock()
				if e.lastUpdate.Before(cutoff) {
					rl.entries.Delete(key)
				}
				e.mu.Unlock()
				return true
			})
		case <-rl.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *LocalRateLimiter) Stop() {
	close(rl.stop)
}

// RedisRateLimiter implements Redis-based distributed rate limiting
type RedisRateLimiter struct {
	config RateLimitConfig
	script string
}

// NewRedisRateLimiter creates a new Redis rate limiter
func NewRedisRateLimiter(config RateLimitConfig) *RedisRateLimiter {
	// Lua script for atomic token bucket rate limiting
	script := `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = 1

local data = redis.call("HMGET", key, "tokens", "last_update")
local tokens = tonumber(data[1]) or burst
local last_update = tonumber(data[2]) or now

-- Calculate tokens to add
local elapsed = now - last_update
local tokens_to_add = elapsed * rate
tokens = math.min(burst, tokens + tokens_to_add)

-- Check if request is allowed
if tokens >= requested then
    tokens = tokens - requested
    redis.call("HMSET", key, "tokens", tokens, "last_update", now)
    redis.call("EXPIRE", key, 60)
    return {1, tokens}
else
    redis.call("HMSET", key, "tokens", tokens, "last_update", now)
    redis.call("EXPIRE", key, 60)
    return {0, tokens}
end
`
	return &RedisRateLimiter{
		config: config,
		script: script,
	}
}

// Allow checks if a request should be allowed using Redis
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / 1e9

	result := rl.config.RedisClient.Eval(ctx, rl.script,
		[]string{rl.config.KeyPrefix + key},
		rl.config.RequestsPerSecond,
		float64(rl.config.BurstSize),
		now,
	)

	if result.Err() != nil {
		return false, result.Err()
	}

	values, err := result.Slice()
	if err != nil {
		return false, err
	}

	if len(values) < 1 {
		return false, fmt.Errorf("unexpected result length")
	}

	allowed, _ := values[0].(int64)
	return allowed == 1, nil
}

// RateLimiter creates a rate limiting middleware
func RateLimiter(config RateLimitConfig) gin.HandlerFunc {
	var localLimiter *LocalRateLimiter
	var redisLimiter *RedisRateLimiter

	if config.UseRedis && config.RedisClient != nil {
		redisLimiter = NewRedisRateLimiter(config)
	} else {
		localLimiter = NewLocalRateLimiter(config)
	}

	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	return func(c *gin.Context) {
		key := keyFunc(c)

		var allowed bool
		var err error

		if redisLimiter != nil {
			allowed, err = redisLimiter.Allow(c.Request.Context(), key)
			if err != nil {
				// Fail open on Redis errors
				allowed = true
			}
		} else {
			allowed = localLimiter.Allow(key)
		}

		// Approximate remaining tokens for headers
		remaining := config.BurstSize - 1
		if !allowed {
			remaining = 0
		}

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatFloat(config.RequestsPerSecond, 'f', -1, 64))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !allowed {
			retryAfter := 1
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.TooManyRequests("Rate limit exceeded. Please retry after "+strconv.Itoa(retryAfter)+" second(s)."))
			return
		}

		c.Next()
	}
}

// RateLimiterWithDefault creates a rate limiting middleware with default config
func RateLimiterWithDefault() gin.HandlerFunc {
	return RateLimiter(DefaultRateLimitConfig())
}

// GlobalRateLimiter implements global (non-per-key) concurrency limiting
type GlobalRateLimiter struct {
	maxConcurrent int64
	currentCount  int64
	mu            sync.Mutex
}

// NewGlobalRateLimiter creates a new global rate limiter
func NewGlobalRateLimiter(maxConcurrent int64) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		maxConcurrent: maxConcurrent,
	}
}

// Acquire tries to acquire a slot
func (g *GlobalRateLimiter) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentCount >= g.maxConcurrent {
		return false
	}
	g.currentCount++
	return true
}

// Release releases a slot
func (g *GlobalRateLimiter) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.currentCount > 0 {
		g.currentCount--
	}
}

// CurrentCount returns the current concurrent request count
func (g *GlobalRateLimiter) CurrentCount() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentCount
}

// ConcurrencyLimiter creates a middleware that limits concurrent requests
func ConcurrencyLimiter(maxConcurrent int64) gin.HandlerFunc {
	limiter := NewGlobalRateLimiter(maxConcurrent)

	return func(c *gin.Context) {
		if !limiter.Acquire() {
			c.Header("Retry-After", "1")
			c.Header("X-Concurrency-Limit", strconv.FormatInt(maxConcurrent, 10))

			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				response.TooManyRequests("Server is at capacity. Please retry in a moment."))
			return
		}

		defer limiter.Release()
		c.Next()
	}
}
