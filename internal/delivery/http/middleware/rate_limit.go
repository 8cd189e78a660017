package middleware

import (
	"strconv"
	"sync"
	"time"

	"go-panelworks-backend/pkg/apperror"
	"go-panelworks-backend/pkg/logger"
	"go-panelworks-backend/pkg/redis"
	"go-panelworks-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// rateLimitEntry tracks request count for a key (in-memory fallback)
type rateLimitEntry struct {
	count   int
	resetAt time.Time
	mu      sync.Mutex
}

var (
	rateLimitStore = sync.Map{}
	cleanupOnce    sync.Once
)

// startCleanup sweeps expired in-memory entries so the fallback store does
// not grow without bound.
func startCleanup() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		for range ticker.C {
			now := time.Now()
			rateLimitStore.Range(func(key, value interface{}) bool {
				entry := value.(*rateLimitEntry)
				entry.mu.Lock()
				if now.After(entry.resetAt) {
					rateLimitStore.Delete(key)
				}
				entry.mu.Unlock()
				return true
			})
		}
	}()
}

// SubmissionRateLimit guards the contact endpoint per client IP. Redis
// sliding window when available, fixed-window in-memory fallback otherwise.
// Fails open: a broken limiter never blocks the contact form.
func SubmissionRateLimit(limiter *security.SubmissionLimiter, limit int, window time.Duration) gin.HandlerFunc {
	cleanupOnce.Do(startCleanup)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if redis.Client() != nil {
			allowed, err := limiter.Allow(c.Request.Context(), ip)
			if err != nil {
				logger.Log.Warn("rate limiter degraded", "error", err)
			}
			if !allowed {
				c.Header("Retry-After", retryAfter(limiter.Window()))
				c.Error(apperror.TooManyRequests())
				c.Abort()
				return
			}
			c.Next()
			return
		}

		// In-memory fixed window fallback
		val, _ := rateLimitStore.LoadOrStore(ip, &rateLimitEntry{resetAt: time.Now().Add(window)})
		entry := val.(*rateLimitEntry)

		entry.mu.Lock()
		now := time.Now()
		if now.After(entry.resetAt) {
			entry.count = 0
			entry.resetAt = now.Add(window)
		}
		entry.count++
		exceeded := entry.count > limit
		entry.mu.Unlock()

		if exceeded {
			c.Header("Retry-After", retryAfter(window))
			c.Error(apperror.TooManyRequests())
			c.Abort()
			return
		}

		c.Next()
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
