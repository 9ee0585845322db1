package quote

import (
	"errors"
	"fmt"
	"time"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/exchange"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/rebalance"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

// Options tune how strictly a snapshot is accepted.
type Options struct {
	// MaxLstPriceDelta bounds the relative move of an LST price against its
	// previous epoch. Zero disables the check.
	MaxLstPriceDelta fix.UFix64[fix.N9]
	// LstPriceMaxAge accepts LST prices this many epochs old, carried
	// forward to the current epoch. Zero requires current-epoch prices.
	LstPriceMaxAge uint64
	// Curves overrides the embedded fee curves.
	Curves *fees.Curves
}

// State is the priced view of a snapshot: validated contexts for the LST
// and exogenous pairs plus the LST prices quotes convert through. It is
// immutable and safe for concurrent use.
type State struct {
	snapshot *Snapshot
	clock    clock.Clock
	lst      *exchange.LstContext
	exo      *exchange.ExoContext
	prices   map[string]ledger.LstSolPrice
	solUsd   oracle.OraclePrice
}

// NewState validates snap against clk and loads the exchange contexts.
func NewState(snap *Snapshot, clk clock.Clock, opts Options) (*State, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	prices, err := lstPrices(snap, clk.Epoch(), opts)
	if err != nil {
		return nil, err
	}
	var tableFees fees.CollateralFees
	if snap.Config.StablecoinFees != nil {
		tableFees = fees.TableFees{Controller: *snap.Config.StablecoinFees}
	}
	lst, err := exchange.LoadLst(clk, exchange.LstInputs{
		TotalSol:          snap.TotalSol,
		Threshold1:        snap.Config.Threshold1,
		Floor:             snap.Config.Floor,
		Oracle:            snap.Config.Oracle,
		SolUsdFeed:        snap.SolUsd,
		LevercoinFees:     snap.Config.LevercoinFees,
		VirtualStablecoin: snap.Stablecoin,
		LevercoinSupply:   snap.LevercoinSupply,
		Curves:            opts.Curves,
		StablecoinFees:    tableFees,
	})
	if err != nil {
		return nil, fmt.Errorf("load lst context: %w", err)
	}
	solUsd, err := oracle.Query(clk, snap.SolUsd, snap.Config.Oracle)
	if err != nil {
		return nil, err
	}
	s := &State{snapshot: snap, clock: clk, lst: lst, prices: prices, solUsd: solUsd}
	if x := snap.Exo; x != nil {
		s.exo, err = exchange.LoadExo(clk, exchange.ExoInputs{
			TotalCollateral:   x.TotalCollateral,
			Threshold1:        x.Threshold1,
			Floor:             x.Floor,
			Oracle:            snap.Config.Oracle,
			UsdFeed:           x.UsdFeed,
			Switchboard:       x.Switchboard,
			LevercoinFees:     x.LevercoinFees,
			VirtualStablecoin: x.Stablecoin,
			LevercoinSupply:   x.LevercoinSupply,
			Curves:            opts.Curves,
			StablecoinFees:    tableFees,
		})
		if err != nil {
			return nil, fmt.Errorf("load exo context: %w", err)
		}
	}
	return s, nil
}

func lstPrices(snap *Snapshot, epoch uint64, opts Options) (map[string]ledger.LstSolPrice, error) {
	out := make(map[string]ledger.LstSolPrice, len(snap.Lsts))
	for sym, h := range snap.Lsts {
		tok, err := LookupToken(sym)
		if err != nil {
			return nil, err
		}
		if h.Previous != nil && !opts.MaxLstPriceDelta.IsZero() {
			if err := h.Price.ValidateDelta(*h.Previous, opts.MaxLstPriceDelta); err != nil {
				return nil, fmt.Errorf("%s: %w", tok.Symbol, err)
			}
		}
		price, err := h.Price.PriceWithin(epoch, opts.LstPriceMaxAge)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tok.Symbol, err)
		}
		out[tok.Symbol] = ledger.LstSolPrice{Price: price, Epoch: epoch}
	}
	return out, nil
}

func (s *State) Snapshot() *Snapshot              { return s.snapshot }
func (s *State) Clock() clock.Clock               { return s.clock }
func (s *State) Lst() *exchange.LstContext        { return s.lst }
func (s *State) SolUsdOracle() oracle.OraclePrice { return s.solUsd }

// Exo returns the exogenous context, or ErrNoExoPair if the snapshot has
// none.
func (s *State) Exo() (*exchange.ExoContext, error) {
	if s.exo == nil {
		return nil, ErrNoExoPair
	}
	return s.exo, nil
}

// LstPrice returns the epoch-current price of an LST token.
func (s *State) LstPrice(t Token) (ledger.LstSolPrice, error) {
	p, ok := s.prices[t.Symbol]
	if !ok {
		return ledger.LstSolPrice{}, fmt.Errorf("%w: %s", ErrUnknownLst, t.Symbol)
	}
	return p, nil
}

// RebalanceOffer previews the collateral trade open at the current CR.
func (s *State) RebalanceOffer() (rebalance.Offer, error) {
	return rebalance.Preview(rebalance.State{
		CR:              s.lst.CollateralRatio(),
		Oracle:          s.solUsd,
		VirtualStable:   s.lst.StablecoinSupply(),
		TotalCollateral: s.lst.TotalCollateral(),
	}, s.snapshot.Config.Rebalance.Sell, s.snapshot.Config.Rebalance.Buy)
}

// Summary is the protocol state published to clients.
type Summary struct {
	Slot                   uint64                    `json:"slot"`
	Epoch                  uint64                    `json:"epoch"`
	Mode                   stability.Mode            `json:"stability_mode"`
	CollateralRatio        fix.UFix64[fix.N9]        `json:"collateral_ratio"`
	TotalCollateral        fix.UFix64[fix.N9]        `json:"total_sol"`
	SolUsd                 oracle.PriceRange[fix.N8] `json:"sol_usd"`
	StablecoinSupply       fix.UFix64[fix.N6]        `json:"stablecoin_supply"`
	LevercoinSupply        fix.UFix64[fix.N6]        `json:"levercoin_supply"`
	StablecoinNav          fix.UFix64[fix.N9]        `json:"stablecoin_nav"`
	LevercoinNav           oracle.PriceRange[fix.N9] `json:"levercoin_nav"`
	MaxMintableStablecoin  fix.UFix64[fix.N6]        `json:"max_mintable_stablecoin"`
	MaxSwappableStablecoin fix.UFix64[fix.N6]        `json:"max_swappable_stablecoin"`
	Pool                   PoolBalances              `json:"stability_pool"`
	LpSupply               fix.UFix64[fix.N6]        `json:"lp_supply"`
	LpTokenNav             fix.UFix64[fix.N6]        `json:"lp_token_nav"`
	StabilityPoolCap       fix.UFix64[fix.N6]        `json:"stability_pool_cap"`
	Lsts                   LstPrices                 `json:"lst_prices"`
	Rebalance              *rebalance.Offer          `json:"rebalance,omitempty"`
	HarvestPending         bool                      `json:"harvest_pending"`
	Exo                    *ExoSummary               `json:"exo,omitempty"`
	FetchedAt              time.Time                 `json:"fetched_at"`
}

// LstPrices maps LST symbols to their SOL price.
type LstPrices map[string]fix.UFix64[fix.N9]

type ExoSummary struct {
	Mode             stability.Mode            `json:"stability_mode"`
	CollateralRatio  fix.UFix64[fix.N9]        `json:"collateral_ratio"`
	TotalCollateral  fix.UFix64[fix.N9]        `json:"total_collateral"`
	UsdPrice         oracle.PriceRange[fix.N8] `json:"usd_price"`
	StablecoinSupply fix.UFix64[fix.N6]        `json:"stablecoin_supply"`
	LevercoinNav     oracle.PriceRange[fix.N9] `json:"levercoin_nav"`
}

// Summary renders the state. Limits that are undefined in the current mode
// (for instance max mintable below the lowest threshold) are reported as
// zero.
func (s *State) Summary() (Summary, error) {
	lst := s.lst
	snav, err := lst.StablecoinNav()
	if err != nil {
		return Summary{}, err
	}
	lnav, err := levercoinNav(lst)
	if err != nil {
		return Summary{}, err
	}
	lever, err := lst.LevercoinSupply()
	if err != nil {
		return Summary{}, err
	}
	pool := s.snapshot.Pool
	poolCap, err := lst.StabilityPoolCap(pool.Stablecoin, pool.Levercoin)
	if err != nil {
		return Summary{}, err
	}
	lpNav, err := s.lpTokenNav()
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		Slot:                   s.clock.Slot(),
		Epoch:                  s.clock.Epoch(),
		Mode:                   lst.Mode(),
		CollateralRatio:        lst.CollateralRatio(),
		TotalCollateral:        lst.TotalCollateral(),
		SolUsd:                 lst.CollateralUsdPrice(),
		StablecoinSupply:       lst.StablecoinSupply(),
		LevercoinSupply:        lever,
		StablecoinNav:          snav,
		LevercoinNav:           lnav,
		MaxMintableStablecoin:  orZero(lst.MaxMintableStablecoin()),
		MaxSwappableStablecoin: orZero(lst.MaxSwappableStablecoin()),
		Pool:                   pool,
		LpSupply:               s.snapshot.LpSupply,
		LpTokenNav:             lpNav,
		StabilityPoolCap:       poolCap,
		Lsts:                   make(LstPrices, len(s.prices)),
		FetchedAt:              s.snapshot.FetchedAt,
	}
	for sym, p := range s.prices {
		out.Lsts[sym] = p.Price
	}
	offer, err := s.RebalanceOffer()
	switch {
	case err == nil:
		out.Rebalance = &offer
	case !errors.Is(err, rebalance.ErrNoRoute):
		return Summary{}, err
	}
	if cache := s.snapshot.Config.HarvestCache; s.snapshot.Config.Harvest != nil && cache != nil {
		out.HarvestPending = cache.IsStale(s.clock.Epoch())
	}
	if s.exo != nil {
		exoNav, err := levercoinNav(s.exo)
		if err != nil {
			return Summary{}, err
		}
		out.Exo = &ExoSummary{
			Mode:             s.exo.Mode(),
			CollateralRatio:  s.exo.CollateralRatio(),
			TotalCollateral:  s.exo.TotalCollateral(),
			UsdPrice:         s.exo.CollateralUsdPrice(),
			StablecoinSupply: s.exo.StablecoinSupply(),
			LevercoinNav:     exoNav,
		}
	}
	return out, nil
}

func (s *State) lpTokenNav() (fix.UFix64[fix.N6], error) {
	snav, err := s.lst.StablecoinNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	lnav, err := s.lst.LevercoinMintNav()
	if err != nil {
		return fix.UFix64[fix.N6]{}, err
	}
	pool := s.snapshot.Pool
	return calc.LpTokenNav(snav, pool.Stablecoin, lnav, pool.Levercoin, s.snapshot.LpSupply)
}

func levercoinNav(ctx exchange.Context) (oracle.PriceRange[fix.N9], error) {
	redeem, err := ctx.LevercoinRedeemNav()
	if err != nil {
		return oracle.PriceRange[fix.N9]{}, err
	}
	mint, err := ctx.LevercoinMintNav()
	if err != nil {
		return oracle.PriceRange[fix.N9]{}, err
	}
	return oracle.NewRange(redeem, mint), nil
}

func orZero[S fix.Scale](v fix.UFix64[S], err error) fix.UFix64[S] {
	if err != nil {
		return fix.Zero[S]()
	}
	return v
}
