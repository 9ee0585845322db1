package rebalance

import "errors"

var (
	ErrCurveConfig       = errors.New("rebalance curve multipliers must be positive")
	ErrPriceConstruction = errors.New("rebalance price curve construction failed")
	ErrPriceConversion   = errors.New("rebalance price conversion failed")
	ErrSellInactive      = errors.New("sell-side rebalance inactive at this collateral ratio")
	ErrBuyInactive       = errors.New("buy-side rebalance inactive at this collateral ratio")
	ErrNoRoute           = errors.New("no rebalance route at this collateral ratio")
)
