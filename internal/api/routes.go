package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteConfig carries the settings Routes needs from the service config.
type RouteConfig struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func (h *Handler) Routes(m *Middleware, cfg RouteConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(cfg.CORSOrigins))
	if cfg.RateLimitRPM > 0 {
		r.Use(m.RateLimit(cfg.RateLimitRPM))
	}

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		// Live updates hold the connection open, so they skip the timeout
		// and compression.
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/events", h.HandleSSE)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5, "application/json"))
			r.Use(m.Timeout(cfg.RequestTimeout))

			// JSON-RPC endpoint
			r.Post("/jsonrpc", h.HandleJSONRPC)

			// Protocol
			r.Route("/protocol", func(r chi.Router) {
				r.Get("/state", h.GetProtocolState)
				r.Get("/health", h.GetProtocolHealth)
			})
			r.Get("/pairs", h.ListPairs)

			// Quotes
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", h.GetQuote)
				r.Get("/{id}", h.GetQuoteByID)
			})
		})
	})

	return r
}
