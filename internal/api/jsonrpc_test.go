package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/quote/quotetest"
)

type rpcResult[T any] struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  T             `json:"result"`
	Error   *JSONRPCError `json:"error"`
}

func (s *testServer) rpc(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/jsonrpc", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "JSON-RPC errors travel in the body")
	return w
}

func TestJSONRPC_GetQuote(t *testing.T) {
	srv := createTestServer(t, defaultSource())

	st, err := quotetest.State(quotetest.Snapshot())
	require.NoError(t, err)
	want, err := st.Compute(quote.NewPair(quote.JITOSOL, quote.HYUSD), 2_500_000_000)
	require.NoError(t, err)

	testCases := []struct {
		name string
		body string
	}{
		{name: "object params", body: `{"jsonrpc":"2.0","id":1,"method":"getQuote","params":{"in":"JitoSOL","out":"hyUSD","amount":"2.5"}}`},
		{name: "array params", body: `{"jsonrpc":"2.0","id":1,"method":"getQuote","params":[{"in":"jitosol","out":"HYUSD","amount":"2.5"}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := decode[rpcResult[QuoteDTO]](t, srv.rpc(t, tc.body))
			require.Nil(t, resp.Error)
			assert.Equal(t, "2.0", resp.JSONRPC)
			assert.EqualValues(t, 1, resp.ID)
			require.NotNil(t, resp.Result.Quote)
			assert.Equal(t, want.OutAmount, resp.Result.OutAmount)
			assert.Equal(t, quote.MintStablecoin, resp.Result.Operation)

			byID := `{"jsonrpc":"2.0","id":"x","method":"getQuoteById","params":{"id":"` + resp.Result.ID + `"}}`
			again := decode[rpcResult[QuoteDTO]](t, srv.rpc(t, byID))
			require.Nil(t, again.Error)
			assert.Equal(t, resp.Result.ID, again.Result.ID)
		})
	}
}

func TestJSONRPC_ProtocolMethods(t *testing.T) {
	srv := createTestServer(t, defaultSource())

	state := decode[rpcResult[quote.Summary]](t, srv.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"getProtocolState"}`))
	require.Nil(t, state.Error)
	assert.Equal(t, quotetest.Clock.SlotValue, state.Result.Slot)

	pairs := decode[rpcResult[[]map[string]any]](t, srv.rpc(t, `{"jsonrpc":"2.0","id":3,"method":"getPairs"}`))
	require.Nil(t, pairs.Error)
	assert.Len(t, pairs.Result, len(quote.Pairs(true)))
}

func TestJSONRPC_Errors(t *testing.T) {
	srv := createTestServer(t, defaultSource())

	testCases := []struct {
		name     string
		body     string
		wantCode int
		wantData string
	}{
		{name: "parse error", body: `{"jsonrpc":`, wantCode: JSONRPCParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"getQuote"}`, wantCode: JSONRPCInvalidRequest},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"getUnsignedTransaction"}`, wantCode: JSONRPCMethodNotFound},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"getQuote"}`, wantCode: JSONRPCInvalidParams},
		{name: "missing amount", body: `{"jsonrpc":"2.0","id":1,"method":"getQuote","params":{"in":"JitoSOL","out":"hyUSD"}}`, wantCode: JSONRPCInvalidParams},
		{
			name:     "unsupported pair",
			body:     `{"jsonrpc":"2.0","id":1,"method":"getQuote","params":{"in":"xSOL","out":"xSOL","amount":"1"}}`,
			wantCode: JSONRPCInvalidParams,
			wantData: CodeUnsupportedPair,
		},
		{
			name:     "expired quote",
			body:     `{"jsonrpc":"2.0","id":1,"method":"getQuoteById","params":{"id":"gone"}}`,
			wantCode: JSONRPCNotFound,
			wantData: CodeQuoteNotFound,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := decode[rpcResult[map[string]any]](t, srv.rpc(t, tc.body))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			if tc.wantData != "" {
				data, ok := resp.Error.Data.(map[string]any)
				require.True(t, ok)
				assert.Equal(t, tc.wantData, data["code"])
			}
		})
	}
}

func TestRPCCode(t *testing.T) {
	assert.Equal(t, JSONRPCInvalidParams, rpcCode(http.StatusUnprocessableEntity))
	assert.Equal(t, JSONRPCNotFound, rpcCode(http.StatusNotFound))
	assert.Equal(t, JSONRPCUnavailable, rpcCode(http.StatusServiceUnavailable))
	assert.Equal(t, JSONRPCInternalError, rpcCode(http.StatusInternalServerError))
}
