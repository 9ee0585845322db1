package fees

import "errors"

var (
	ErrExtraction            = errors.New("fee extraction failed")
	ErrInvalidFees           = errors.New("fee must be below 100%")
	ErrNoStablecoinMintFee   = errors.New("no valid stablecoin mint fee in current mode")
	ErrNoLevercoinMintFee    = errors.New("no valid levercoin mint fee in current mode")
	ErrNoLevercoinRedeemFee  = errors.New("no valid levercoin redeem fee in current mode")
	ErrNoSwapFee             = errors.New("no valid swap fee in current mode")
	ErrCRConversion          = errors.New("collateral ratio cannot be narrowed to curve precision")
	ErrFeeConversion         = errors.New("interpolated fee cannot be converted")
	ErrCurveTable            = errors.New("invalid fee curve table")
	ErrFundingRateValidation = errors.New("funding rate out of range")
	ErrFundingRateApply      = errors.New("funding rate application overflow")
)
