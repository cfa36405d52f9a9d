package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/desafio-dunas/registration-api/internal/redisclient"
	"go.uber.org/zap"
)

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	mutex      sync.Mutex
	logger     *logging.SafeLogger
}

// NewRateLimiter creates a new token bucket rate limiter
func NewRateLimiter(maxTokens int, refillRate time.Duration, logger *logging.SafeLogger) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
		logger:     logger,
	}
}

// Allow checks if a request should be allowed based on rate limiting
func (rl *RateLimiter) Allow(ctx context.Context, operation string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	tokensToAdd := int(now.Sub(rl.lastRefill) / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}

	observability.RateLimitRejections.WithLabelValues(operation).Inc()
	rl.logger.Warn("rate limiter rejected request",
		zap.String("operation", operation),
		zap.Int("max_tokens", rl.maxTokens))
	return false
}

// IssueRateLimiter caps verification code requests per client across instances
// using a fixed window counter in Redis. When Redis is unavailable it allows the request.
type IssueRateLimiter struct {
	redis  *redisclient.Client
	limit  int
	window time.Duration
	logger *logging.SafeLogger
}

// NewIssueRateLimiter creates a limiter allowing limit requests per window. A nil
// client or a non-positive limit disables limiting.
func NewIssueRateLimiter(redis *redisclient.Client, limit int, window time.Duration, logger *logging.SafeLogger) *IssueRateLimiter {
	return &IssueRateLimiter{
		redis:  redis,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Allow counts a request for key and reports whether it is within the limit,
// along with how long until the window resets
func (l *IssueRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil || l.limit <= 0 || l.window <= 0 {
		return true, 0
	}

	redisKey := fmt.Sprintf("ratelimit:issue:%s", key)

	count, retryAfter, err := l.redis.IncrWithExpire(ctx, redisKey, l.window)
	if err != nil {
		l.logger.Warn("issue rate limiter unavailable, allowing request", zap.Error(err))
		return true, 0
	}

	if count <= int64(l.limit) {
		return true, 0
	}
	if retryAfter <= 0 {
		retryAfter = l.window
	}

	observability.RateLimitRejections.WithLabelValues("issue").Inc()
	l.logger.Info("verification code request rate limited",
		zap.String("client", key),
		zap.Int64("count", count))
	return false, retryAfter
}
