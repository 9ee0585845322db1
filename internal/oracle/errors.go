package oracle

import "errors"

var (
	ErrVerificationLevel = errors.New("oracle update is not fully verified")
	ErrNegativeTime      = errors.New("oracle or clock timestamp is not positive")
	ErrOutdated          = errors.New("oracle price is outdated")
	ErrSlotInvalid       = errors.New("oracle posted slot outside interval")
	ErrNegativePrice     = errors.New("oracle price is not positive")
	ErrExponent          = errors.New("unsupported oracle exponent")
	ErrConfidence        = errors.New("oracle confidence interval too wide")
	ErrPriceRange        = errors.New("price range out of bounds")

	ErrSwitchboardStale   = errors.New("switchboard feed is stale")
	ErrSwitchboardInvalid = errors.New("switchboard feed has no usable value")
	ErrSwitchboardRange   = errors.New("switchboard value out of range")
)
