package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		s.cfg.Telemetry.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client", c.ClientIP()),
			zap.Duration("took", time.Since(start)))
	}
}

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

func newIPLimiter(perMin int) *ipLimiter {
	return &ipLimiter{
		every:   rate.Every(time.Minute / time.Duration(perMin)),
		burst:   perMin,
		clients: map[string]*rate.Limiter{},
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.clients[ip]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.clients[ip] = lim
	}
	return lim
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.get(c.ClientIP()).Allow() {
			fail(c, http.StatusTooManyRequests, "Too many queries. Please wait before asking another question.")
			return
		}
		c.Next()
	}
}
