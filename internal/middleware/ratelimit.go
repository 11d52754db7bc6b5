package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/foodgram/internal/auth"
)

// RateLimitConfig configures a fixed-window limiter.
type RateLimitConfig struct {
	Limit     int           // requests allowed per window
	Window    time.Duration // window length
	KeyPrefix string        // Redis key namespace, e.g. "foodgram:rl"
}

// KeyFunc names the bucket a request is counted against.
type KeyFunc func(r *http.Request) string

// windowCounter increments the counter for key and returns the new value.
// The counter must expire after window.
type windowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// redisCounter keeps counters in Redis.
//
// INCR and EXPIRE go out in one pipeline: one round trip, and a key never
// outlives its window even if the process dies between the two commands.
type redisCounter struct {
	client *redis.Client
}

func (c redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter limits each client to Limit requests per Window.
//
// FIXED WINDOWS:
// Time is cut into windows aligned to Window (now.Truncate(Window)), and each
// window gets its own Redis key "<prefix>:<client>:<window start>". A client
// may burst up to 2×Limit across a window boundary; that is acceptable for
// abuse protection and needs a single INCR per request.
//
// FAIL OPEN:
// If Redis is unreachable the request is let through and the failure is
// logged. Losing rate limiting is better than losing the API.
type RateLimiter struct {
	counter windowCounter
	config  RateLimitConfig
	key     KeyFunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimiter creates a limiter backed by client. keyFn defaults to
// ClientKey(nil), which buckets by remote IP only.
func NewRateLimiter(client *redis.Client, config RateLimitConfig, keyFn KeyFunc, logger *slog.Logger) *RateLimiter {
	return newRateLimiter(redisCounter{client: client}, config, keyFn, logger)
}

func newRateLimiter(counter windowCounter, config RateLimitConfig, keyFn KeyFunc, logger *slog.Logger) *RateLimiter {
	if keyFn == nil {
		keyFn = ClientKey(nil)
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit"
	}
	return &RateLimiter{
		counter: counter,
		config:  config,
		key:     keyFn,
		logger:  logger,
		now:     time.Now,
	}
}

// Allow counts one request for client. It returns whether the request fits
// in the current window, how many requests remain, and when the window resets.
func (rl *RateLimiter) Allow(ctx context.Context, client string) (bool, int, time.Time, error) {
	windowStart := rl.now().Truncate(rl.config.Window)
	reset := windowStart.Add(rl.config.Window)
	key := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, client, windowStart.Unix())

	count, err := rl.counter.Incr(ctx, key, rl.config.Window)
	if err != nil {
		return true, rl.config.Limit, reset, err
	}

	remaining := max(rl.config.Limit-int(count), 0)
	return int(count) <= rl.config.Limit, remaining, reset, nil
}

// Middleware enforces the limit. Every response carries X-RateLimit-Limit,
// X-RateLimit-Remaining and X-RateLimit-Reset; a rejected one is 429 with
// Retry-After.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := rl.key(r)
		allowed, remaining, reset, err := rl.Allow(r.Context(), client)
		if err != nil {
			rl.logger.Warn("rate limit check failed, allowing request",
				slog.String("client", client),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := max(int(reset.Sub(rl.now()).Seconds()), 1)
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": fmt.Sprintf("request limit of %d per %v exceeded", rl.config.Limit, rl.config.Window),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientKey buckets authenticated callers by user ID and everyone else by
// remote IP. Pass nil tokens to always bucket by IP.
//
// The limiter runs before the auth middleware, so it validates the token
// itself; an invalid token falls back to the IP bucket.
func ClientKey(tokens *auth.TokenService) KeyFunc {
	return func(r *http.Request) string {
		if tokens != nil {
			if token := auth.TokenFromRequest(r); token != "" {
				if id, err := tokens.Validate(token); err == nil {
					return "user:" + strconv.FormatInt(id, 10)
				}
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr // RealIP rewrites RemoteAddr without a port
		}
		return "ip:" + host
	}
}
