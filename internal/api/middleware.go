package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"execution-core/internal/monitor"
)

// Per-IP rate limiters, reset wholesale every few minutes to bound growth.
var (
	ipLimiters = make(map[string]*rate.Limiter)
	ipMu       sync.RWMutex
)

func getIPLimiter(ip string) *rate.Limiter {
	ipMu.RLock()
	limiter, exists := ipLimiters[ip]
	ipMu.RUnlock()
	if exists {
		return limiter
	}

	ipMu.Lock()
	defer ipMu.Unlock()
	if limiter, exists := ipLimiters[ip]; exists {
		return limiter
	}
	// 20 req/s per IP, burst 50
	limiter = rate.NewLimiter(rate.Limit(20), 50)
	ipLimiters[ip] = limiter
	return limiter
}

func init() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			ipMu.Lock()
			ipLimiters = make(map[string]*rate.Limiter)
			ipMu.Unlock()
		}
	}()
}

// CORSMiddleware handles cross-origin requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware tags every request with a unique id for tracing.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("RequestID", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware prevents API abuse with per-IP limiting.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !getIPLimiter(ip).Allow() {
			log.Printf("[RATE_LIMIT] IP %s exceeded rate limit", ip)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"message": "too many requests, please slow down",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// TimeoutMiddleware bounds request handling time.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		finished := make(chan struct{})
		panicChan := make(chan interface{}, 1)

		go func() {
			defer func() {
				if p := recover(); p != nil {
					panicChan <- p
				}
			}()
			c.Next()
			finished <- struct{}{}
		}()

		select {
		case <-panicChan:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
		case <-finished:
			return
		case <-ctx.Done():
			log.Printf("[TIMEOUT] %s %s", c.Request.Method, c.Request.URL.Path)
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "request timeout"})
			c.Abort()
		}
	}
}

// RequestLogger logs API requests with timing and records API metrics.
func RequestLogger(metrics *monitor.ExecutionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		requestID := c.GetString("RequestID")
		if requestID == "" {
			requestID = "unknown"
		}
		if len(requestID) > 8 {
			requestID = requestID[:8]
		}

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		if metrics != nil {
			metrics.IncrementAPI()
			if statusCode >= 400 {
				metrics.IncrementAPIErrors()
			}
		}

		log.Printf("[API] %s | %s %s | %d | %v | %s",
			requestID, method, path, statusCode, latency, c.ClientIP())
	}
}
