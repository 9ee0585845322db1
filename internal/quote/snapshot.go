package quote

import (
	"fmt"
	"time"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/rebalance"
)

// Snapshot is a point-in-time copy of every account a quote reads. It is
// never mutated after it is loaded; State is derived from it.
type Snapshot struct {
	Clock  clock.Fixed    `json:"clock" yaml:"clock"`
	Config ProtocolConfig `json:"config" yaml:"config"`

	TotalSol        ledger.TotalSolCache     `json:"total_sol_cache" yaml:"total_sol_cache"`
	SolUsd          oracle.PriceFeed         `json:"sol_usd" yaml:"sol_usd"`
	Stablecoin      ledger.VirtualStablecoin `json:"stablecoin" yaml:"stablecoin"`
	LevercoinSupply *fix.UFix64[fix.N6]      `json:"levercoin_supply,omitempty" yaml:"levercoin_supply,omitempty"`
	LpSupply        fix.UFix64[fix.N6]       `json:"lp_supply" yaml:"lp_supply"`
	Pool            PoolBalances             `json:"pool" yaml:"pool"`

	// Lsts is keyed by token symbol.
	Lsts map[string]LstHeader `json:"lsts" yaml:"lsts"`

	Exo *ExoSnapshot `json:"exo,omitempty" yaml:"exo,omitempty"`

	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// ProtocolConfig is the admin-set configuration of the exchange and pool
// programs.
type ProtocolConfig struct {
	Threshold1 fix.UFix64[fix.N2] `json:"stability_threshold_1" yaml:"stability_threshold_1"`
	// Floor is the depeg threshold; zero means 1.00.
	Floor         fix.UFix64[fix.N2]   `json:"floor" yaml:"floor"`
	Oracle        oracle.Config        `json:"oracle" yaml:"oracle"`
	LevercoinFees fees.LevercoinFees   `json:"levercoin_fees" yaml:"levercoin_fees"`
	LstSwap       fees.LstSwapConfig   `json:"lst_swap" yaml:"lst_swap"`
	WithdrawalFee fix.UFix64[fix.N4]   `json:"withdrawal_fee" yaml:"withdrawal_fee"`
	Rebalance     RebalanceConfig      `json:"rebalance" yaml:"rebalance"`
	// StablecoinFees replaces curve pricing with a per-mode table.
	StablecoinFees *fees.StablecoinFees      `json:"stablecoin_fees,omitempty" yaml:"stablecoin_fees,omitempty"`
	Harvest        *ledger.YieldHarvestConfig `json:"harvest,omitempty" yaml:"harvest,omitempty"`
	HarvestCache   *ledger.YieldHarvestCache  `json:"harvest_cache,omitempty" yaml:"harvest_cache,omitempty"`
}

type RebalanceConfig struct {
	Sell rebalance.CurveConfig `json:"sell" yaml:"sell"`
	Buy  rebalance.CurveConfig `json:"buy" yaml:"buy"`
}

// PoolBalances are the stability pool's token accounts.
type PoolBalances struct {
	Stablecoin fix.UFix64[fix.N6] `json:"stablecoin" yaml:"stablecoin"`
	Levercoin  fix.UFix64[fix.N6] `json:"levercoin" yaml:"levercoin"`
}

// LstHeader is an LST's registered price. Previous, when present, is the
// price of the last epoch and bounds how far Price may move.
type LstHeader struct {
	Price    ledger.LstSolPrice  `json:"price_sol" yaml:"price_sol"`
	Previous *ledger.LstSolPrice `json:"previous,omitempty" yaml:"previous,omitempty"`
}

// ExoSnapshot is the state of the exogenous collateral pair.
type ExoSnapshot struct {
	TotalCollateral fix.UFix64[fix.N9]       `json:"total_collateral" yaml:"total_collateral"`
	Threshold1      fix.UFix64[fix.N2]       `json:"stability_threshold_1" yaml:"stability_threshold_1"`
	Floor           fix.UFix64[fix.N2]       `json:"floor" yaml:"floor"`
	UsdFeed         *oracle.PriceFeed        `json:"usd_feed,omitempty" yaml:"usd_feed,omitempty"`
	Switchboard     *oracle.SwitchboardQuote `json:"switchboard,omitempty" yaml:"switchboard,omitempty"`
	Stablecoin      ledger.VirtualStablecoin `json:"stablecoin" yaml:"stablecoin"`
	LevercoinSupply *fix.UFix64[fix.N6]      `json:"levercoin_supply,omitempty" yaml:"levercoin_supply,omitempty"`
	LevercoinFees   fees.LevercoinFees       `json:"levercoin_fees" yaml:"levercoin_fees"`
}

// Validate checks the snapshot is structurally usable. Economic checks
// (staleness, oracle bounds, thresholds) happen when State is built.
func (s *Snapshot) Validate() error {
	if len(s.Lsts) == 0 {
		return fmt.Errorf("%w: no lst headers", ErrInvalidSnapshot)
	}
	for sym := range s.Lsts {
		tok, err := LookupToken(sym)
		if err != nil || tok.Kind != KindLst {
			return fmt.Errorf("%w: %q is not a registered lst", ErrInvalidSnapshot, sym)
		}
	}
	if err := s.Config.LevercoinFees.Validate(); err != nil {
		return fmt.Errorf("%w: levercoin fees: %v", ErrInvalidSnapshot, err)
	}
	if s.Config.StablecoinFees != nil {
		if err := s.Config.StablecoinFees.Validate(); err != nil {
			return fmt.Errorf("%w: stablecoin fees: %v", ErrInvalidSnapshot, err)
		}
	}
	if !s.Config.LstSwap.Fee.IsZero() {
		if err := s.Config.LstSwap.Validate(); err != nil {
			return fmt.Errorf("%w: lst swap fee: %v", ErrInvalidSnapshot, err)
		}
	}
	if s.Config.WithdrawalFee.Gte(fix.One[fix.N4]()) {
		return fmt.Errorf("%w: withdrawal fee %s", ErrInvalidSnapshot, s.Config.WithdrawalFee)
	}
	if err := s.Config.Rebalance.Sell.Validate(); err != nil {
		return fmt.Errorf("%w: sell curve: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Config.Rebalance.Buy.Validate(); err != nil {
		return fmt.Errorf("%w: buy curve: %v", ErrInvalidSnapshot, err)
	}
	if s.Config.Harvest != nil {
		if err := s.Config.Harvest.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}
	if s.Exo != nil {
		if s.Exo.UsdFeed == nil && s.Exo.Switchboard == nil {
			return fmt.Errorf("%w: exo pair has no price source", ErrInvalidSnapshot)
		}
		if err := s.Exo.LevercoinFees.Validate(); err != nil {
			return fmt.Errorf("%w: exo levercoin fees: %v", ErrInvalidSnapshot, err)
		}
	}
	return nil
}
