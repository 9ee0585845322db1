// Package quotetest provides protocol snapshots for tests.
package quotetest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/rebalance"
)

const Epoch = 500

var Clock = clock.Fixed{SlotValue: 1_000, EpochValue: Epoch, Unix: 1_700_000_000}

// SolUsdFeed is $150.00 +/- $0.015.
func SolUsdFeed() oracle.PriceFeed {
	return oracle.PriceFeed{
		Price:        15_000_000_000,
		Conf:         1_500_000,
		Exponent:     -8,
		PublishTime:  Clock.Unix,
		PostedSlot:   Clock.SlotValue,
		Verification: oracle.VerificationFull,
	}
}

func LevercoinFees() fees.LevercoinFees {
	return fees.LevercoinFees{
		Normal: fees.NewPair(20, 30),
		Mode1:  fees.NewPair(40, 60),
		Mode2:  fees.NewPair(80, 100),
	}
}

func u6(bits uint64) *fix.UFix64[fix.N6] {
	v := fix.New[fix.N6](bits)
	return &v
}

// Snapshot returns a healthy protocol: 100k SOL against 9M hyUSD (CR about
// 1.67), 2M xSOL, and a stability pool holding only hyUSD. The exo pair
// holds 10 WBTC at $60,000.50 against 300k hyUSD.
func Snapshot() *quote.Snapshot {
	return &quote.Snapshot{
		Clock: Clock,
		Config: quote.ProtocolConfig{
			Threshold1:    fix.New[fix.N2](150),
			Oracle:        oracle.Config{IntervalSecs: 60, ConfTolerance: fix.New[fix.N9](20_000_000)},
			LevercoinFees: LevercoinFees(),
			LstSwap:       fees.LstSwapConfig{Fee: fix.New[fix.N4](10)},
			WithdrawalFee: fix.New[fix.N4](10),
			Rebalance: quote.RebalanceConfig{
				Sell: rebalance.NewCurveConfig(fix.New[fix.N2](200), fix.New[fix.N2](100)),
				Buy:  rebalance.NewCurveConfig(fix.New[fix.N2](100), fix.New[fix.N2](100)),
			},
			Harvest:      &ledger.YieldHarvestConfig{Allocation: fix.New[fix.N4](5_000), Fee: fix.New[fix.N4](500)},
			HarvestCache: &ledger.YieldHarvestCache{Epoch: Epoch - 1},
		},
		TotalSol:        ledger.TotalSolCache{Epoch: Epoch, Total: fix.New[fix.N9](100_000_000_000_000)},
		SolUsd:          SolUsdFeed(),
		Stablecoin:      ledger.VirtualStablecoin{Supply: fix.New[fix.N6](9_000_000_000_000)},
		LevercoinSupply: u6(2_000_000_000_000),
		LpSupply:        fix.New[fix.N6](1_000_000_000_000),
		Pool:            quote.PoolBalances{Stablecoin: fix.New[fix.N6](1_050_000_000_000)},
		Lsts: map[string]quote.LstHeader{
			quote.JITOSOL.Symbol: {
				Price:    ledger.LstSolPrice{Price: fix.New[fix.N9](1_100_000_000), Epoch: Epoch},
				Previous: &ledger.LstSolPrice{Price: fix.New[fix.N9](1_099_800_000), Epoch: Epoch - 1},
			},
			quote.HYLOSOL.Symbol: {
				Price: ledger.LstSolPrice{Price: fix.New[fix.N9](1_050_000_000), Epoch: Epoch},
			},
		},
		Exo: &quote.ExoSnapshot{
			TotalCollateral: fix.New[fix.N9](10_000_000_000),
			Threshold1:      fix.New[fix.N2](150),
			Switchboard: &oracle.SwitchboardQuote{
				Slot:   Clock.SlotValue,
				Values: []decimal.Decimal{decimal.RequireFromString("60000.5")},
			},
			Stablecoin:      ledger.VirtualStablecoin{Supply: fix.New[fix.N6](300_000_000_000)},
			LevercoinSupply: u6(100_000_000_000),
			LevercoinFees:   LevercoinFees(),
		},
		FetchedAt: time.Unix(Clock.Unix, 0).UTC(),
	}
}

// State builds the State for snap at Clock.
func State(snap *quote.Snapshot) (*quote.State, error) {
	return quote.NewState(snap, Clock, quote.Options{
		MaxLstPriceDelta: fix.New[fix.N9](10_000_000),
	})
}
