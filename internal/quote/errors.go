package quote

import "errors"

var (
	ErrUnsupportedPair   = errors.New("unsupported token pair")
	ErrUnknownToken      = errors.New("unknown token")
	ErrOperationDisabled = errors.New("operation disabled in current stability mode")
	ErrLevercoinInPool   = errors.New("stability pool holds levercoin")
	ErrNoExoPair         = errors.New("snapshot has no exogenous collateral pair")
	ErrUnknownLst        = errors.New("snapshot has no header for lst")
	ErrInvalidSnapshot   = errors.New("invalid protocol snapshot")
	ErrZeroAmount        = errors.New("amount must be positive")
	ErrOutputOverflow    = errors.New("quote output overflow")
)
