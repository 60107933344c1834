package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"task-manager/api/internal/logger"
	"task-manager/api/internal/monitoring"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxLocalClients bounds the in-process limiter map; it is reset when full.
const maxLocalClients = 10000

// WindowCounter is a shared fixed-window counter. *cache.RedisCache satisfies it.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter allows limit requests per window per client IP. With a counter it
// uses a shared fixed window; without one, or when the counter errors, it falls
// back to an in-process token bucket per IP.
type RateLimiter struct {
	scope   string
	limit   int
	window  time.Duration
	counter WindowCounter

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(scope string, limit int, window time.Duration, counter WindowCounter) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		scope:   scope,
		limit:   limit,
		window:  window,
		counter: counter,
		local:   make(map[string]*rate.Limiter),
	}
}

func (l *RateLimiter) Allow(ctx context.Context, ident string) bool {
	if l.counter != nil {
		key := "rl:" + l.scope + ":" + strconv.FormatInt(int64(l.window.Seconds()), 10) + ":" + ident
		count, err := l.counter.IncrWindow(ctx, key, l.window)
		if err == nil {
			return count <= int64(l.limit)
		}
		logger.Debug("shared rate limiter unavailable, using local limiter", "error", err)
	}
	return l.localLimiter(ident).Allow()
}

func (l *RateLimiter) localLimiter(ident string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[ident]
	if !ok {
		if len(l.local) >= maxLocalClients {
			l.local = make(map[string]*rate.Limiter)
		}
		every := rate.Every(l.window / time.Duration(l.limit))
		lim = rate.NewLimiter(every, l.limit)
		l.local[ident] = lim
	}
	return lim
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(l.window.Seconds()))

	return func(c *gin.Context) {
		if !l.Allow(c.Request.Context(), c.ClientIP()) {
			monitoring.RecordRateLimited(c.FullPath())
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
