package api

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hylo-so/hylo-engine/internal/metrics"
)

type Middleware struct {
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewMiddleware(logger *zap.SugaredLogger, metrics *metrics.Metrics) *Middleware {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Middleware{
		logger:  logger,
		metrics: metrics,
	}
}

// CORS middleware. With no configured origins every origin is allowed, but
// without credentials.
func (m *Middleware) CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return cors.Handler(opts)
}

// rateLimitExempt are the health check and scrape paths. Orchestrators poll them on
// a fixed cadence and must never see 429.
var rateLimitExempt = []string{"/healthz", "/readyz", "/ping", "/metrics"}

const clientIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters keeps one token bucket per client address.
type clientLimiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimiter
	swept   time.Time
}

func (c *clientLimiters) get(key string, now time.Time) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.swept) > clientIdleTTL {
		for k, cl := range c.clients {
			if now.Sub(cl.lastSeen) > clientIdleTTL {
				delete(c.clients, k)
			}
		}
		c.swept = now
	}
	cl, ok := c.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit caps each client at rpm requests per minute with a burst of a
// tenth of that. Those paths are exempt. Rejections carry Retry-After in
// whole seconds.
func (m *Middleware) RateLimit(rpm int) func(http.Handler) http.Handler {
	clients := &clientLimiters{
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   max(1, rpm/10),
		clients: make(map[string]*clientLimiter),
	}
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(60.0/float64(rpm)))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(rateLimitExempt, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := clientKey(r)
			if !clients.get(key, time.Now()).Allow() {
				m.logger.Debugw("Client rate limited",
					"client", key,
					"path", r.URL.Path,
					"rpm", rpm,
				)
				w.Header().Set("Retry-After", retryAfter)
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
					Code:    CodeRateLimited,
					Message: fmt.Sprintf("more than %d requests per minute", rpm),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request and records route metrics. Quote
// requests also log the pair and amount so a rejected quote can be traced
// without replaying it. Metrics are labelled with the route pattern so
// quote ids do not explode cardinality.
func (m *Middleware) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			duration := time.Since(start)
			status := ww.Status()
			fields := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"route", routePattern(r),
				"status", status,
				"size", ww.BytesWritten(),
				"duration", duration,
				"client", clientKey(r),
			}
			if strings.HasPrefix(r.URL.Path, "/v1/quotes") {
				q := r.URL.Query()
				if in := q.Get("in"); in != "" {
					fields = append(fields, "in", in, "out", q.Get("out"), "amount", q.Get("amount"))
				}
				if id := chi.URLParam(r, "id"); id != "" {
					fields = append(fields, "quote_id", id)
				}
			}

			switch {
			case status >= http.StatusInternalServerError:
				m.logger.Errorw("HTTP request", fields...)
			case status >= http.StatusBadRequest && status != http.StatusTooManyRequests:
				m.logger.Warnw("HTTP request", fields...)
			default:
				m.logger.Infow("HTTP request", fields...)
			}

			m.metrics.RecordHTTPRequest(r.Context(), r.Method, routePattern(r), status, duration)
		}()

		next.ServeHTTP(ww, r)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// SecurityHeaders sets browser hardening headers. Everything under /v1 is
// bound to the slot it was computed at, so intermediaries must not cache it.
func (m *Middleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// Recovery middleware with structured logging
func (m *Middleware) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				m.logger.Errorw("Panic recovered",
					"panic", rvr,
					"request_id", middleware.GetReqID(r.Context()),
					"route", routePattern(r),
					"query", r.URL.RawQuery,
					"client", clientKey(r),
					"stack", string(debug.Stack()),
				)

				writeJSON(w, http.StatusInternalServerError, ErrorResponse{
					Code:    CodeInternal,
					Message: http.StatusText(http.StatusInternalServerError),
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Request ID middleware. A client supplied X-Request-ID is kept.
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		w.Header().Set(middleware.RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Timeout middleware. Handlers see the deadline on the request context and
// report TIMEOUT themselves.
func (m *Middleware) Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return middleware.Timeout(timeout)
}
