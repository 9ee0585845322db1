package rebalance

import (
	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

type Side string

const (
	SideSell Side = "sell"
	SideBuy  Side = "buy"
)

// Offer describes the collateral trade the protocol would take at the current
// collateral ratio. MaxCollateral moves CR to the edge of the active curve.
type Offer struct {
	Side          Side               `json:"side"`
	Price         fix.UFix64[fix.N9] `json:"price"`
	MaxCollateral fix.UFix64[fix.N9] `json:"max_collateral"`
}

// State is the protocol view a rebalance offer is priced from.
type State struct {
	CR              fix.UFix64[fix.N9]
	Oracle          oracle.OraclePrice
	VirtualStable   fix.UFix64[fix.N6]
	TotalCollateral fix.UFix64[fix.N9]
}

// Preview returns the open rebalance offer, if any. Between the sell and buy
// domains no route is open and ErrNoRoute is returned.
func Preview(s State, sellCfg, buyCfg CurveConfig) (Offer, error) {
	sell, err := NewSellCurve(s.Oracle, sellCfg)
	if err != nil {
		return Offer{}, err
	}
	if price, err := sell.Price(s.CR); err == nil {
		limit, ok := calc.MaxSellableCollateral(fix.New[fix.N2](135), s.VirtualStable, s.Oracle.Spot, s.TotalCollateral)
		if !ok {
			return Offer{}, ErrNoRoute
		}
		return Offer{Side: SideSell, Price: price, MaxCollateral: limit}, nil
	}

	buy, err := NewBuyCurve(s.Oracle, buyCfg)
	if err != nil {
		return Offer{}, err
	}
	price, err := buy.Price(s.CR)
	if err != nil {
		return Offer{}, ErrNoRoute
	}
	limit, ok := calc.MaxBuyableCollateral(fix.New[fix.N2](165), s.VirtualStable, s.Oracle.Spot, s.TotalCollateral)
	if !ok {
		return Offer{}, ErrNoRoute
	}
	return Offer{Side: SideBuy, Price: price, MaxCollateral: limit}, nil
}
