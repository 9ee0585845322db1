package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/store"
	"github.com/hylo-so/hylo-engine/internal/ws"
	"github.com/hylo-so/hylo-engine/pkg/kv"
)

type Handler struct {
	protocolSvc *onchain.ProtocolService
	quoteSvc    *onchain.QuoteService
	wsHub       *ws.Hub
	sseHandler  *ws.SSEHandler
	cache       *store.Cache
	logger      *zap.SugaredLogger
}

func NewHandler(
	protocolSvc *onchain.ProtocolService,
	quoteSvc *onchain.QuoteService,
	wsHub *ws.Hub,
	sseHandler *ws.SSEHandler,
	cache *store.Cache,
	logger *zap.SugaredLogger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		protocolSvc: protocolSvc,
		quoteSvc:    quoteSvc,
		wsHub:       wsHub,
		sseHandler:  sseHandler,
		cache:       cache,
		logger:      logger,
	}
}

// Protocol endpoints
func (h *Handler) GetProtocolState(w http.ResponseWriter, r *http.Request) {
	summary, err := h.protocolSvc.Summary(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) GetProtocolHealth(w http.ResponseWriter, r *http.Request) {
	health := h.protocolSvc.Health(r.Context())
	dto := HealthDTO{
		Status:  healthStatus(health),
		Ready:   health.Ready,
		Source:  health.Source,
		Mode:    health.Mode,
		Reasons: health.Reasons,
	}
	if !health.LoadedAt.IsZero() {
		dto.LoadedAt = health.LoadedAt.Unix()
	}
	h.writeJSON(w, http.StatusOK, dto)
}

// healthStatus is "danger" when the protocol cannot be quoted or sits in a
// depeg or mode 2, "warn" for any other reason and "ok" otherwise.
func healthStatus(health *onchain.ProtocolHealth) string {
	if !health.Ready {
		return "danger"
	}
	status := "ok"
	for _, reason := range health.Reasons {
		switch reason {
		case "MODE_MODE2", "MODE_DEPEG", "EXO_MODE_MODE2", "EXO_MODE_DEPEG":
			return "danger"
		default:
			status = "warn"
		}
	}
	return status
}

func (h *Handler) ListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.protocolSvc.Pairs(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PairsDTO{Pairs: pairs, AsOf: time.Now().Unix()})
}

// Quote endpoints

// GetQuote serves /v1/quotes?in=JitoSOL&out=hyUSD&amount=1.5. When
// expected_out is given the quote is rejected if it pays less than that
// amount minus slippage_bps (default 50).
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := GetQuoteParams{
		In:          q.Get("in"),
		Out:         q.Get("out"),
		Amount:      q.Get("amount"),
		ExpectedOut: q.Get("expected_out"),
	}
	if raw := q.Get("slippage_bps"); raw != "" {
		bps, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, CodeInvalidAmount, "invalid slippage_bps format")
			return
		}
		params.SlippageBps = bps
	}

	if err := params.validate(); err != nil {
		h.writeError(w, r, http.StatusBadRequest, CodeMissingParameter, err.Error())
		return
	}

	result, err := h.quote(r.Context(), params)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// quote runs a quote request shared by the REST and JSON-RPC surfaces.
func (h *Handler) quote(ctx context.Context, params GetQuoteParams) (*QuoteDTO, error) {
	in, err := quote.LookupToken(params.In)
	if err != nil {
		return nil, err
	}
	out, err := quote.LookupToken(params.Out)
	if err != nil {
		return nil, err
	}
	amount, err := onchain.ParseAmount(in, params.Amount)
	if err != nil {
		return nil, err
	}
	pair := quote.NewPair(in, out)

	q, err := h.quoteSvc.Quote(ctx, pair, amount)
	if err != nil {
		return nil, err
	}

	if params.ExpectedOut != "" {
		expected, err := onchain.ParseAmount(out, params.ExpectedOut)
		if err != nil {
			return nil, fmt.Errorf("expected_out: %w", err)
		}
		tolerance := params.SlippageBps
		if tolerance == 0 {
			tolerance = 50
		}
		if err := onchain.CheckSlippage(q, expected, tolerance); err != nil {
			return nil, err
		}
	}

	issued, err := h.quoteSvc.QuoteCount(ctx, pair)
	if err != nil {
		h.logger.Debugw("Quote count unavailable", "pair", pair.String(), "error", err)
	}
	return &QuoteDTO{Quote: q, Issued: issued}, nil
}

func (h *Handler) GetQuoteByID(w http.ResponseWriter, r *http.Request) {
	q, err := h.quoteSvc.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, QuoteDTO{Quote: q})
}

// Health and ops endpoints
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz reports ready once a snapshot has loaded into a quotable state and
// the cache answers.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	health := h.protocolSvc.Health(r.Context())
	dto := ReadyDTO{Status: "READY", Snapshot: "ok", Cache: "ok", LoadedAt: health.LoadedAt}
	status := http.StatusOK
	if !health.Ready {
		dto.Status, dto.Snapshot = "NOT_READY", "unavailable"
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		h.logger.Warnw("Cache ping failed", "error", err)
		dto.Status, dto.Cache = "NOT_READY", "unavailable"
		status = http.StatusServiceUnavailable
	} else if fs, ok := h.cache.KV().(*kv.FailoverStore); ok && fs.ActiveBackend() == "fallback" {
		// Still serving quotes, but from memory until redis recovers.
		dto.Cache = "degraded"
	}
	h.writeJSON(w, status, dto)
}

// WebSocket endpoint
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsHub.HandleWebSocket(w, r)
}

// SSE endpoint
func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseHandler.HandleSSE(w, r)
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeErr classifies err with ErrorCode. Server side failures are logged at
// error level, client mistakes at debug.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, status := ErrorCode(err)
	h.writeError(w, r, status, code, err.Error())
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	fields := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"code", code,
		"message", message,
		"status", status,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", fields...)
	} else {
		h.logger.Debugw("API error", fields...)
	}

	h.writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
