package ledger

import "errors"

var (
	ErrEpochOrder     = errors.New("update epoch is older than stored epoch")
	ErrCacheStale     = errors.New("total collateral cache not updated for current epoch")
	ErrCacheOverflow  = errors.New("total collateral cache overflow")
	ErrCacheUnderflow = errors.New("total collateral cache underflow")

	ErrPriceStale         = errors.New("lst price is outdated")
	ErrPriceDelta         = errors.New("lst price decreased between epochs")
	ErrPriceDeltaExceeded = errors.New("lst price change exceeds bound")
	ErrPriceConversion    = errors.New("lst conversion overflow")

	ErrMintZero      = errors.New("mint amount is zero")
	ErrBurnZero      = errors.New("burn amount is zero")
	ErrMintOverflow  = errors.New("virtual stablecoin supply overflow")
	ErrBurnUnderflow = errors.New("virtual stablecoin supply underflow")

	ErrHarvestConfig     = errors.New("invalid yield harvest config")
	ErrHarvestAllocation = errors.New("yield allocation overflow")
)
