package exchange

import "errors"

var (
	ErrLevercoinNav             = errors.New("levercoin supply unavailable")
	ErrStablecoinOverMax        = errors.New("requested stablecoin exceeds protocol maximum")
	ErrDestinationFeeStablecoin = errors.New("projected stablecoin supply out of range")
	ErrDestinationFeeCollateral = errors.New("projected collateral out of range")
	ErrNoNextThreshold          = errors.New("no lower stability threshold")
	ErrThresholdCurveDivergence = errors.New("mint curve floor below redeem curve threshold")
	ErrMissingOracle            = errors.New("no collateral price source")
)
