package calc

import "errors"

var (
	ErrCollateralRatio  = errors.New("collateral ratio computation failed")
	ErrTotalValueLocked = errors.New("total value locked computation failed")
	ErrTargetCRTooLow   = errors.New("target collateral ratio must exceed 1")
	ErrMaxMintable      = errors.New("max mintable stablecoin computation failed")
	ErrMaxSwappable     = errors.New("max swappable stablecoin computation failed")
	ErrLevercoinNav     = errors.New("levercoin nav computation failed")
	ErrStablecoinNav    = errors.New("stablecoin nav computation failed")
	ErrLstToToken       = errors.New("collateral to token conversion failed")
	ErrTokenToLst       = errors.New("token to collateral conversion failed")
	ErrStableToLever    = errors.New("stablecoin to levercoin conversion failed")
	ErrLeverToStable    = errors.New("levercoin to stablecoin conversion failed")
	ErrStabilityPoolCap = errors.New("stability pool cap computation failed")
	ErrLpTokenNav       = errors.New("lp token nav computation failed")
	ErrLpTokenOut       = errors.New("lp token out computation failed")
	ErrTokenWithdraw    = errors.New("pool withdrawal computation failed")
	ErrStablecoinToSwap = errors.New("stablecoin to swap computation failed")
	ErrSlippageExceeded = errors.New("output below slippage tolerance")
	ErrSlippageArith    = errors.New("slippage tolerance computation failed")
	ErrInvalidAmount    = errors.New("amount must be positive")
)
