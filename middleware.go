package hyperroute

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/osauer/hyperroute/internal/responsewriter"
)

// MiddlewareFunc is a function type that wraps an http.Handler and returns a new http.HandlerFunc.
// Server middleware runs around the router, before any route entry is matched.
type MiddlewareFunc func(http.Handler) http.HandlerFunc

// MiddlewareStack is a collection of middleware functions that can be applied to an http.Handler.
// Middleware in the stack is applied in order, with the first middleware being the outermost.
type MiddlewareStack []MiddlewareFunc

// DefaultMiddleware returns a predefined middleware stack with essential server functionality.
// Includes metrics collection, request logging, and panic recovery.
func DefaultMiddleware(srv *Server) MiddlewareStack {
	return MiddlewareStack{
		MetricsMiddleware(srv),
		TraceMiddleware,
		RequestLoggerMiddleware,
		RecoveryMiddleware}
}

// SecureWeb returns a middleware stack with rate limiting and security headers.
func SecureWeb(srv *Server) MiddlewareStack {
	return MiddlewareStack{
		RateLimitMiddleware(srv),
		HeadersMiddleware(srv.Options)}
}

// chain applies the stack to handler, first middleware outermost.
func (stack MiddlewareStack) chain(handler http.Handler) http.Handler {
	for i := len(stack) - 1; i >= 0; i-- {
		handler = stack[i](handler)
	}
	return handler
}

// Header context keys
type contextKey string

const (
	authorizationHeader            = "Authorization"
	bearerTokenPrefix              = "Bearer "
	traceIDKey          contextKey = "traceID"
)

// Header represents an HTTP header key-value pair used in middleware configuration.
type Header struct {
	key   string
	value string
}

// MetricsMiddleware returns a middleware function that collects request metrics.
// It tracks total request count and response times for performance monitoring.
func MetricsMiddleware(srv *Server) MiddlewareFunc {
	return func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			srv.totalRequests.Add(1)
			start := time.Now()
			defer func() {
				srv.totalResponseTime.Add(time.Since(start).Microseconds())
			}()
			next.ServeHTTP(w, r)
		}
	}
}

// RequestLoggerMiddleware logs IP address, method, URL, trace ID, status code, and request duration.
func RequestLoggerMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// capture status code and bytes written
		rec := responsewriter.New(w)

		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		start := time.Now()
		defer func() {
			logger.Info("Request completed",
				"from", ip,
				"method", r.Method,
				"url", r.URL.String(),
				"trace_id", TraceID(r.Context()),
				"status", rec.Status(),
				"bytes", rec.Size(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(rec, r)
	}
}

// RecoveryMiddleware recovers from panics that escape the router and returns a 500 status code.
// Aborted handlers (http.ErrAbortHandler) are passed on so the connection is dropped.
func RecoveryMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("Panic recovered", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	}
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitMiddleware returns a middleware function that enforces rate limiting per client IP address.
// Uses token bucket algorithm with configurable rate limit and burst capacity.
// Returns 429 Too Many Requests when rate limit is exceeded.
func RateLimitMiddleware(srv *Server) MiddlewareFunc {
	return func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip, _, _ := net.SplitHostPort(r.RemoteAddr)

			srv.limitersMu.Lock()
			entry, exists := srv.clientLimiters[ip]
			if !exists {
				entry = &rateLimiterEntry{
					limiter: rate.NewLimiter(srv.Options.RateLimit, srv.Options.Burst),
				}
				srv.clientLimiters[ip] = entry
			}
			entry.lastAccess = time.Now()
			srv.limitersMu.Unlock()

			if !entry.limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%.0f", float64(srv.Options.RateLimit)))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", entry.limiter.Tokens()))
			next.ServeHTTP(w, r)
		}
	}
}

// pruneLimiters drops client limiters that have been idle longer than idle.
func (srv *Server) pruneLimiters(idle time.Duration) int {
	srv.limitersMu.Lock()
	defer srv.limitersMu.Unlock()
	pruned := 0
	for ip, entry := range srv.clientLimiters {
		if time.Since(entry.lastAccess) > idle {
			delete(srv.clientLimiters, ip)
			pruned++
		}
	}
	return pruned
}

// securityHeaders provide headers for HeadersMiddleware
var securityHeaders = []Header{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'self'; img-src 'self' data:; object-src 'none'; frame-ancestors 'none'"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
}

// HeadersMiddleware returns a middleware function that adds security headers to responses.
// In hardened mode the Server header is omitted.
func HeadersMiddleware(options *ServerOptions) MiddlewareFunc {
	return func(next http.Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !options.HardenedMode {
				w.Header().Set("Server", "hyperroute")
			}
			for _, h := range securityHeaders {
				w.Header().Set(h.key, h.value)
			}
			next.ServeHTTP(w, r)
		}
	}
}

// TraceMiddleware returns a middleware function that adds trace IDs to requests.
func TraceMiddleware(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceID := generateTraceID()
		w.Header().Set("X-Trace-Id", traceID)
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// TraceID returns the trace ID set by TraceMiddleware, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

func generateTraceID() string {
	counter := requestCounter.Add(1)
	return fmt.Sprintf("%d-%d", counter, time.Now().UnixNano())
}

var requestCounter atomic.Int64

// TokenValidatorFunc reports whether a bearer token is acceptable.
type TokenValidatorFunc func(token string) (bool, error)

// RequireBearer is a route handler that validates the bearer token in the
// Authorization header and continues on success. Rejected requests get a 401.
// The accepted token is stored in Context.Data under "bearer".
func RequireBearer(validate TokenValidatorFunc) HandlerFunc {
	if validate == nil {
		panic("hyperroute: nil token validator")
	}
	return func(c *Context) error {
		authHeader := c.Request.Header.Get(authorizationHeader)
		token := strings.TrimPrefix(authHeader, bearerTokenPrefix)
		if !strings.HasPrefix(authHeader, bearerTokenPrefix) || token == "" {
			c.Response.Header().Set("WWW-Authenticate", "Bearer")
			return c.Response.SendStatus(http.StatusUnauthorized)
		}

		// Use crypto/subtle.WithDataIndependentTiming for constant-time token validation
		var valid bool
		var err error
		subtle.WithDataIndependentTiming(func() {
			valid, err = validate(token)
		})
		if err != nil {
			return fmt.Errorf("validating bearer token: %w", err)
		}
		if !valid {
			c.Response.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			return c.Response.SendStatus(http.StatusUnauthorized)
		}
		if c.Data == nil {
			c.Data = url.Values{}
		}
		c.Data.Set("bearer", token)
		c.Next()
		return nil
	}
}
