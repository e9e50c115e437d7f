package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RequestIDMiddleware keeps a caller-supplied X-Request-ID or mints one, and
// echoes it on the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
		log.Debug().Str("module", "adapters.http").Str("request_id", id).Str("method", c.Request.Method).Str("path", c.FullPath()).Int("status", c.Writer.Status()).Msg("request")
	}
}

// visitorIdle is how long a limiter may go unused before it is evicted.
const visitorIdle = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter hands out one token bucket per client. A client is its
// ct cookie when the request carries one, otherwise its IP.
type ClientRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewClientRateLimiter(perSecond float64, burst int) *ClientRateLimiter {
	return &ClientRateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Limit(perSecond),
		burst:     burst,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *ClientRateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= visitorIdle {
		rl.sweep(now)
	}
	v, ok := rl.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[client] = v
	}
	v.lastSeen = now
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// sweep drops visitors idle for at least visitorIdle. Callers hold mu.
func (rl *ClientRateLimiter) sweep(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= visitorIdle {
			delete(rl.visitors, key)
		}
	}
	rl.lastSweep = now
}

// Len reports how many clients currently hold a bucket.
func (rl *ClientRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

func (rl *ClientRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := rateLimitKey(c)
		if !rl.Allow(client) {
			log.Warn().Str("module", "adapters.http").Str("client", client).Msg("append rate limited")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// rateLimitKey ignores tokens minted for this request, so clients that drop
// cookies share their IP's bucket.
func rateLimitKey(c *gin.Context) string {
	if token, err := c.Cookie("ct"); err == nil && token != "" {
		return "ct:" + token
	}
	return "ip:" + c.ClientIP()
}
