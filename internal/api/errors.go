package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/exchange"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/quote"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeMissingParameter    = "MISSING_PARAMETER"
	CodeUnknownToken        = "UNKNOWN_TOKEN"
	CodeUnsupportedPair     = "UNSUPPORTED_PAIR"
	CodeOperationDisabled   = "OPERATION_DISABLED"
	CodePairUnavailable     = "PAIR_UNAVAILABLE"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodePoolHoldsLevercoin  = "POOL_HOLDS_LEVERCOIN"
	CodeMathOverflow        = "MATH_OVERFLOW"
	CodeSlippageExceeded    = "SLIPPAGE_EXCEEDED"
	CodeOracleUnavailable   = "ORACLE_UNAVAILABLE"
	CodeStateStale          = "STATE_STALE"
	CodeSnapshotUnavailable = "SNAPSHOT_UNAVAILABLE"
	CodeQuoteNotFound       = "QUOTE_NOT_FOUND"
	CodeTimeout             = "TIMEOUT"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

type errorClass struct {
	code   string
	status int
	errs   []error
}

// Order matters: a snapshot failure wraps the oracle error that caused it,
// and the snapshot code is the one clients act on.
var errorClasses = []errorClass{
	{CodeSnapshotUnavailable, http.StatusServiceUnavailable, []error{onchain.ErrSnapshotUnavailable}},
	{CodeQuoteNotFound, http.StatusNotFound, []error{onchain.ErrQuoteNotFound}},
	{CodeInvalidAmount, http.StatusBadRequest, []error{onchain.ErrInvalidAmount, quote.ErrZeroAmount, calc.ErrInvalidAmount}},
	{CodeUnknownToken, http.StatusBadRequest, []error{quote.ErrUnknownToken}},
	{CodeUnsupportedPair, http.StatusBadRequest, []error{quote.ErrUnsupportedPair}},
	{CodeOperationDisabled, http.StatusUnprocessableEntity, []error{quote.ErrOperationDisabled}},
	{CodePairUnavailable, http.StatusUnprocessableEntity, []error{quote.ErrNoExoPair, quote.ErrUnknownLst}},
	{CodePoolHoldsLevercoin, http.StatusUnprocessableEntity, []error{quote.ErrLevercoinInPool}},
	{CodeSlippageExceeded, http.StatusUnprocessableEntity, []error{calc.ErrSlippageExceeded}},
	{CodeLimitExceeded, http.StatusUnprocessableEntity, []error{
		exchange.ErrStablecoinOverMax,
		fees.ErrNoStablecoinMintFee,
		fees.ErrNoLevercoinMintFee,
		fees.ErrNoLevercoinRedeemFee,
		fees.ErrNoSwapFee,
	}},
	{CodeOracleUnavailable, http.StatusServiceUnavailable, []error{
		oracle.ErrOutdated,
		oracle.ErrSlotInvalid,
		oracle.ErrConfidence,
		oracle.ErrVerificationLevel,
		oracle.ErrNegativePrice,
		oracle.ErrSwitchboardStale,
		oracle.ErrSwitchboardInvalid,
		exchange.ErrMissingOracle,
	}},
	{CodeStateStale, http.StatusServiceUnavailable, []error{
		ledger.ErrCacheStale,
		ledger.ErrPriceStale,
		ledger.ErrPriceDelta,
		ledger.ErrPriceDeltaExceeded,
	}},
	{CodeMathOverflow, http.StatusUnprocessableEntity, []error{
		quote.ErrOutputOverflow,
		fix.ErrOverflow,
		fix.ErrUnderflow,
		fix.ErrDivideByZero,
	}},
	{CodeTimeout, http.StatusGatewayTimeout, []error{context.DeadlineExceeded}},
}

// ErrorCode classifies err into a stable client-facing code and the HTTP
// status that goes with it.
func ErrorCode(err error) (string, int) {
	for _, c := range errorClasses {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.code, c.status
			}
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// rpcCode maps an HTTP status onto a JSON-RPC error code. Client errors are
// invalid params; everything else uses the implementation-defined server
// error range.
func rpcCode(status int) int {
	switch {
	case status == http.StatusNotFound:
		return JSONRPCNotFound
	case status >= 400 && status < 500:
		return JSONRPCInvalidParams
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return JSONRPCUnavailable
	default:
		return JSONRPCInternalError
	}
}
