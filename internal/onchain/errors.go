package onchain

import "errors"

var (
	ErrSnapshotUnavailable = errors.New("protocol snapshot unavailable")
	ErrQuoteNotFound       = errors.New("quote not found or expired")
	ErrUnknownStrategy     = errors.New("unknown quote strategy")
	ErrInvalidAmount       = errors.New("invalid amount")
)
