package api

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 request structure
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// JSON-RPC 2.0 response structure
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// JSON-RPC 2.0 error structure
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// getQuote method parameters. Amounts are decimal token units.
type GetQuoteParams struct {
	In          string `json:"in"`
	Out         string `json:"out"`
	Amount      string `json:"amount"`
	ExpectedOut string `json:"expectedOut,omitempty"`
	SlippageBps uint64 `json:"slippageBps,omitempty"`
}

func (p GetQuoteParams) validate() error {
	switch {
	case p.In == "":
		return fmt.Errorf("in is required")
	case p.Out == "":
		return fmt.Errorf("out is required")
	case p.Amount == "":
		return fmt.Errorf("amount is required")
	}
	return nil
}

// getQuoteById method parameters
type GetQuoteByIDParams struct {
	ID string `json:"id"`
}

// JSON-RPC error codes (following standard)
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603

	// Server error range
	JSONRPCUnavailable = -32001
	JSONRPCNotFound    = -32004
)
