package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// HandleJSONRPC handles JSON-RPC 2.0 requests. Errors are reported in the
// response body with HTTP 200.
func (h *Handler) HandleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendJSONRPCError(w, nil, JSONRPCParseError, "Parse error", err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidRequest, "Invalid Request", "jsonrpc must be '2.0'")
		return
	}

	switch req.Method {
	case "getQuote":
		h.handleGetQuote(w, r, &req)
	case "getQuoteById":
		h.handleGetQuoteByID(w, r, &req)
	case "getProtocolState":
		summary, err := h.protocolSvc.Summary(r.Context())
		h.sendJSONRPCResult(w, &req, summary, err)
	case "getPairs":
		pairs, err := h.protocolSvc.Pairs(r.Context())
		h.sendJSONRPCResult(w, &req, pairs, err)
	default:
		h.sendJSONRPCError(w, req.ID, JSONRPCMethodNotFound, "Method not found", fmt.Sprintf("Method '%s' not found", req.Method))
	}
}

func (h *Handler) handleGetQuote(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	var params GetQuoteParams
	if err := decodeParams(req.Params, &params); err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}
	if err := params.validate(); err != nil {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", err.Error())
		return
	}

	result, err := h.quote(r.Context(), params)
	h.sendJSONRPCResult(w, req, result, err)
}

func (h *Handler) handleGetQuoteByID(w http.ResponseWriter, r *http.Request, req *JSONRPCRequest) {
	var params GetQuoteByIDParams
	if err := decodeParams(req.Params, &params); err != nil || params.ID == "" {
		h.sendJSONRPCError(w, req.ID, JSONRPCInvalidParams, "Invalid params", "id is required")
		return
	}

	q, err := h.quoteSvc.GetQuote(r.Context(), params.ID)
	if err != nil {
		h.sendJSONRPCResult(w, req, nil, err)
		return
	}
	h.sendJSONRPCResult(w, req, QuoteDTO{Quote: q}, nil)
}

// decodeParams accepts params either as an object or as a one element
// array holding the object.
func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("params are required")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		if len(list) != 1 {
			return fmt.Errorf("expected a single params object, got %d", len(list))
		}
		raw = list[0]
	}
	return json.Unmarshal(raw, v)
}

func (h *Handler) sendJSONRPCResult(w http.ResponseWriter, req *JSONRPCRequest, result any, err error) {
	if err != nil {
		code, status := ErrorCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Errorw("JSON-RPC error", "method", req.Method, "code", code, "error", err)
		}
		h.sendJSONRPCError(w, req.ID, rpcCode(status), err.Error(), ErrorResponse{Code: code, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	})
}

func (h *Handler) sendJSONRPCError(w http.ResponseWriter, id any, code int, message string, data any) {
	writeJSON(w, http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	})
}
