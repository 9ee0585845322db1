package quote

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/exchange"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

const refPrecision = 24

// ReferenceStrategy recomputes quotes in arbitrary-precision decimal. It
// rounds only where the protocol settles an amount: fees round up and
// outputs truncate to the output token's decimals. Validated inputs (oracle
// range, LST prices, fee schedules) are read from the same State the engine
// uses, so the two strategies differ only in intermediate rounding.
type ReferenceStrategy struct {
	states StateProvider
}

func NewReferenceStrategy(states StateProvider) *ReferenceStrategy {
	return &ReferenceStrategy{states: states}
}

func (r *ReferenceStrategy) Quote(ctx context.Context, pair Pair, amountIn uint64) (OperationOutput, error) {
	if err := ctx.Err(); err != nil {
		return OperationOutput{}, err
	}
	s, err := r.states.State(ctx)
	if err != nil {
		return OperationOutput{}, err
	}
	op, err := pair.Operation()
	if err != nil {
		return OperationOutput{}, err
	}
	if amountIn == 0 {
		return OperationOutput{}, ErrZeroAmount
	}
	var src feeSource = s.lst
	if op.Exo() {
		exo, err := s.Exo()
		if err != nil {
			return OperationOutput{}, err
		}
		src = exo
	}
	m := newRefModel(src)
	if !op.AllowedIn(m.mode) {
		return OperationOutput{}, fmt.Errorf("%w: %s in %s", ErrOperationDisabled, op, m.mode)
	}

	collateral := fix.New[fix.N9](amountIn).Decimal()
	token := fix.New[fix.N6](amountIn).Decimal()
	one := decimal.NewFromInt(1)

	var (
		l              refLeg
		outDec, feeDec int32 = 6, 9
		feeMint              = pair.In
	)
	switch op {
	case MintStablecoin:
		p, err := s.refLstPrice(pair.In)
		if err != nil {
			return OperationOutput{}, err
		}
		l, err = m.mintStable(collateral, p)
		if err != nil {
			return OperationOutput{}, err
		}
	case RedeemStablecoin:
		p, err := s.refLstPrice(pair.Out)
		if err != nil {
			return OperationOutput{}, err
		}
		l, err = m.redeemStable(token, p)
		if err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	case MintLevercoin:
		p, err := s.refLstPrice(pair.In)
		if err != nil {
			return OperationOutput{}, err
		}
		l, err = m.mintLever(collateral, p)
		if err != nil {
			return OperationOutput{}, err
		}
	case RedeemLevercoin:
		p, err := s.refLstPrice(pair.Out)
		if err != nil {
			return OperationOutput{}, err
		}
		l, err = m.redeemLever(token, p)
		if err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	case SwapStableToLever:
		if l, err = m.stableToLever(token); err != nil {
			return OperationOutput{}, err
		}
		feeDec, feeMint = 6, HYUSD
	case SwapLeverToStable:
		if l, err = m.leverToStable(token); err != nil {
			return OperationOutput{}, err
		}
		feeDec, feeMint = 6, HYUSD
	case LstSwap:
		if l, err = s.refLstSwap(pair, collateral); err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	case DepositToStabilityPool:
		if l, err = s.refDeposit(m, token); err != nil {
			return OperationOutput{}, err
		}
		feeDec, feeMint = 6, HYUSD
	case WithdrawFromStabilityPool:
		if l, err = s.refWithdraw(token); err != nil {
			return OperationOutput{}, err
		}
		feeDec, feeMint = 6, HYUSD
	case WithdrawAndRedeem:
		p, err := s.refLstPrice(pair.Out)
		if err != nil {
			return OperationOutput{}, err
		}
		if l, err = s.refWithdrawAndRedeem(m, token, p); err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	case ExoMintStablecoin:
		if l, err = m.mintStable(collateral, one); err != nil {
			return OperationOutput{}, err
		}
	case ExoRedeemStablecoin:
		if l, err = m.redeemStable(token, one); err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	case ExoMintLevercoin:
		if l, err = m.mintLever(collateral, one); err != nil {
			return OperationOutput{}, err
		}
	case ExoRedeemLevercoin:
		if l, err = m.redeemLever(token, one); err != nil {
			return OperationOutput{}, err
		}
		outDec, feeMint = 9, pair.Out
	default:
		return OperationOutput{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, pair)
	}
	return l.output(amountIn, outDec, feeDec, feeMint)
}

// feeSource is an exchange context that also exposes its stablecoin fee
// schedule.
type feeSource interface {
	exchange.Context
	StablecoinFees() fees.CollateralFees
}

// refLeg is one settled operation in decimal token units.
type refLeg struct {
	out, fee, base decimal.Decimal
}

// output converts the leg to raw units. The fee base shares the fee's
// decimals.
func (l refLeg) output(amountIn uint64, outDec, feeDec int32, feeMint Token) (OperationOutput, error) {
	out, err := rawUnits(l.out, outDec)
	if err != nil {
		return OperationOutput{}, err
	}
	fee, err := rawUnits(l.fee, feeDec)
	if err != nil {
		return OperationOutput{}, err
	}
	base, err := rawUnits(l.base, feeDec)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{InAmount: amountIn, OutAmount: out, FeeAmount: fee, FeeMint: feeMint, FeeBase: base}, nil
}

func rawUnits(d decimal.Decimal, places int32) (uint64, error) {
	n := d.Shift(places).Truncate(0)
	if n.IsNegative() || !n.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrOutputOverflow, d)
	}
	return n.BigInt().Uint64(), nil
}

func div(a, b decimal.Decimal) decimal.Decimal { return a.DivRound(b, refPrecision) }

// refModel is an exchange context held in decimal.
type refModel struct {
	total, lower, upper decimal.Decimal
	stable, snav        decimal.Decimal
	lever               *decimal.Decimal
	ctrl                stability.Controller
	mode                stability.Mode
	leverFees           fees.LevercoinFees
	stableFees          fees.CollateralFees
}

func newRefModel(src feeSource) *refModel {
	price := src.CollateralUsdPrice()
	m := &refModel{
		total:      src.TotalCollateral().Decimal(),
		lower:      price.Lower.Decimal(),
		upper:      price.Upper.Decimal(),
		stable:     src.StablecoinSupply().Decimal(),
		ctrl:       src.Controller(),
		leverFees:  src.LevercoinFees(),
		stableFees: src.StablecoinFees(),
	}
	if lever, err := src.LevercoinSupply(); err == nil {
		d := lever.Decimal()
		m.lever = &d
	}
	m.mode = m.ctrl.Mode(m.crFix(m.total, m.stable))
	m.snav = decimal.NewFromInt(1)
	if m.mode == stability.Depeg {
		m.snav = div(m.total.Mul(m.lower), m.stable)
	}
	return m
}

func (m *refModel) crFix(total, stable decimal.Decimal) fix.UFix64[fix.N9] {
	if !stable.IsPositive() {
		return fix.MaxUFix64[fix.N9]()
	}
	cr, err := fix.FromDecimal[fix.N9](div(total.Mul(m.lower), stable))
	if err != nil {
		return fix.MaxUFix64[fix.N9]()
	}
	return cr
}

func (m *refModel) feeMode(total, stable decimal.Decimal) (stability.Mode, fix.UFix64[fix.N9]) {
	cr := m.crFix(total, stable)
	return stability.Worse(m.mode, m.ctrl.Mode(cr)), cr
}

func (m *refModel) stableRate(redeem bool, total, stable decimal.Decimal) (decimal.Decimal, error) {
	mode, cr := m.feeMode(total, stable)
	in := fees.Inputs{Mode: mode, CR: cr}
	var (
		rate fees.Rate
		err  error
	)
	if redeem {
		rate, err = m.stableFees.RedeemRate(in)
	} else {
		rate, err = m.stableFees.MintRate(in)
	}
	return rate.Decimal(), err
}

func (m *refModel) leverRate(rate func(stability.Mode) (fix.UFix64[fix.N4], error), total, stable decimal.Decimal) (decimal.Decimal, error) {
	mode, _ := m.feeMode(total, stable)
	r, err := rate(mode)
	return r.Decimal(), err
}

func (m *refModel) leverNav(price decimal.Decimal) (decimal.Decimal, error) {
	if m.lever == nil {
		return decimal.Decimal{}, exchange.ErrLevercoinNav
	}
	if m.lever.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	free := m.total.Mul(price).Sub(m.stable.Mul(m.snav))
	if free.IsNegative() {
		return decimal.Decimal{}, calc.ErrLevercoinNav
	}
	return div(free, *m.lever), nil
}

func (m *refModel) minThreshold() decimal.Decimal {
	return m.ctrl.MinThreshold().Decimal()
}

func (m *refModel) mintStable(amount, lstSol decimal.Decimal) (refLeg, error) {
	sol := amount.Mul(lstSol)
	minted := div(sol.Mul(m.lower), m.snav)
	rate, err := m.stableRate(false, m.total.Add(sol), m.stable.Add(minted))
	if err != nil {
		return refLeg{}, err
	}
	fee := amount.Mul(rate).RoundCeil(9)
	out := div(amount.Sub(fee).Mul(lstSol).Mul(m.lower), m.snav).Truncate(6)
	t := m.minThreshold()
	limit := div(m.total.Mul(m.upper).Sub(t.Mul(m.stable)), t.Sub(decimal.NewFromInt(1)))
	if out.GreaterThan(limit) {
		return refLeg{}, fmt.Errorf("%w: %s > %s", exchange.ErrStablecoinOverMax, out, limit)
	}
	return refLeg{out: out, fee: fee, base: amount}, nil
}

func (m *refModel) redeemStable(amount, lstSol decimal.Decimal) (refLeg, error) {
	lstOut := div(div(amount.Mul(m.snav), m.upper), lstSol).Truncate(9)
	sol := lstOut.Mul(lstSol)
	redeemed := div(sol.Mul(m.lower), m.snav)
	newStable := m.stable.Sub(redeemed)
	if newStable.IsNegative() {
		return refLeg{}, exchange.ErrDestinationFeeStablecoin
	}
	rate, err := m.stableRate(true, m.total.Sub(sol), newStable)
	if err != nil {
		return refLeg{}, err
	}
	fee := lstOut.Mul(rate).RoundCeil(9)
	return refLeg{out: lstOut.Sub(fee), fee: fee, base: lstOut}, nil
}

func (m *refModel) mintLever(amount, lstSol decimal.Decimal) (refLeg, error) {
	sol := amount.Mul(lstSol)
	rate, err := m.leverRate(m.leverFees.MintFee, m.total.Add(sol), m.stable)
	if err != nil {
		return refLeg{}, err
	}
	fee := amount.Mul(rate).RoundCeil(9)
	nav, err := m.leverNav(m.upper)
	if err != nil {
		return refLeg{}, err
	}
	out := div(amount.Sub(fee).Mul(lstSol).Mul(m.lower), nav).Truncate(6)
	return refLeg{out: out, fee: fee, base: amount}, nil
}

func (m *refModel) redeemLever(amount, lstSol decimal.Decimal) (refLeg, error) {
	nav, err := m.leverNav(m.lower)
	if err != nil {
		return refLeg{}, err
	}
	lstOut := div(div(amount.Mul(nav), m.upper), lstSol).Truncate(9)
	rate, err := m.leverRate(m.leverFees.RedeemFee, m.total.Sub(lstOut.Mul(lstSol)), m.stable)
	if err != nil {
		return refLeg{}, err
	}
	fee := lstOut.Mul(rate).RoundCeil(9)
	return refLeg{out: lstOut.Sub(fee), fee: fee, base: lstOut}, nil
}

func (m *refModel) stableToLever(amount decimal.Decimal) (refLeg, error) {
	rate, err := m.leverRate(m.leverFees.SwapFromStablecoinFee, m.total, m.stable.Sub(amount))
	if err != nil {
		return refLeg{}, err
	}
	fee := amount.Mul(rate).RoundCeil(6)
	nav, err := m.leverNav(m.upper)
	if err != nil {
		return refLeg{}, err
	}
	out := div(amount.Sub(fee).Mul(m.snav), nav).Truncate(6)
	return refLeg{out: out, fee: fee, base: amount}, nil
}

func (m *refModel) leverToStable(amount decimal.Decimal) (refLeg, error) {
	nav, err := m.leverNav(m.lower)
	if err != nil {
		return refLeg{}, err
	}
	total := div(amount.Mul(nav), m.snav).Truncate(6)
	limit := div(m.total.Mul(m.lower), m.minThreshold()).Sub(m.stable)
	if total.GreaterThan(limit) {
		return refLeg{}, fmt.Errorf("%w: %s > %s", exchange.ErrStablecoinOverMax, total, limit)
	}
	rate, err := m.leverRate(m.leverFees.SwapToStablecoinFee, m.total, m.stable.Add(total))
	if err != nil {
		return refLeg{}, err
	}
	fee := total.Mul(rate).RoundCeil(6)
	return refLeg{out: total.Sub(fee), fee: fee, base: total}, nil
}

func (s *State) refLstPrice(t Token) (decimal.Decimal, error) {
	p, err := s.LstPrice(t)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return p.Price.Decimal(), nil
}

func (s *State) refLstSwap(pair Pair, amount decimal.Decimal) (refLeg, error) {
	rate := s.snapshot.Config.LstSwap.Fee
	if rate.IsZero() {
		return refLeg{}, fmt.Errorf("%w: lst swap fee not configured", ErrOperationDisabled)
	}
	in, err := s.refLstPrice(pair.In)
	if err != nil {
		return refLeg{}, err
	}
	out, err := s.refLstPrice(pair.Out)
	if err != nil {
		return refLeg{}, err
	}
	converted := div(amount.Mul(in), out).Truncate(9)
	fee := converted.Mul(rate.Decimal()).RoundCeil(9)
	return refLeg{out: converted.Sub(fee), fee: fee, base: converted}, nil
}

func (s *State) refDeposit(m *refModel, amount decimal.Decimal) (refLeg, error) {
	lp := s.snapshot.LpSupply.Decimal()
	nav := decimal.NewFromInt(1)
	if lp.IsPositive() {
		lnav, err := m.leverNav(m.upper)
		if err != nil {
			return refLeg{}, err
		}
		pool := s.snapshot.Pool
		nav = div(pool.Stablecoin.Decimal().Mul(m.snav).Add(pool.Levercoin.Decimal().Mul(lnav)), lp)
	}
	return refLeg{out: div(amount, nav).Truncate(6), fee: decimal.Zero, base: amount}, nil
}

func (s *State) refProRata(amount decimal.Decimal) (stable, lever decimal.Decimal, err error) {
	lp := s.snapshot.LpSupply.Decimal()
	if !lp.IsPositive() || amount.GreaterThan(lp) {
		return stable, lever, fmt.Errorf("%w: %s of %s lp supply", calc.ErrTokenWithdraw, amount, lp)
	}
	pool := s.snapshot.Pool
	stable = div(amount.Mul(pool.Stablecoin.Decimal()), lp).Truncate(6)
	lever = div(amount.Mul(pool.Levercoin.Decimal()), lp).Truncate(6)
	return stable, lever, nil
}

func (s *State) refWithdraw(amount decimal.Decimal) (refLeg, error) {
	if !s.snapshot.Pool.Levercoin.IsZero() {
		return refLeg{}, ErrLevercoinInPool
	}
	stable, _, err := s.refProRata(amount)
	if err != nil {
		return refLeg{}, err
	}
	fee := stable.Mul(s.snapshot.Config.WithdrawalFee.Decimal()).RoundCeil(6)
	return refLeg{out: stable.Sub(fee), fee: fee, base: stable}, nil
}

func (s *State) refWithdrawAndRedeem(m *refModel, amount, lstSol decimal.Decimal) (refLeg, error) {
	stable, lever, err := s.refProRata(amount)
	if err != nil {
		return refLeg{}, err
	}
	lnav, err := m.leverNav(m.upper)
	if err != nil {
		return refLeg{}, err
	}
	value := stable.Mul(m.snav).Add(lever.Mul(lnav))
	withdrawal := decimal.Min(value.Mul(s.snapshot.Config.WithdrawalFee.Decimal()).RoundCeil(6), s.snapshot.Pool.Stablecoin.Decimal())
	remaining := decimal.Max(stable.Sub(withdrawal), decimal.Zero)

	total := refLeg{out: decimal.Zero, fee: decimal.Zero}
	if remaining.IsPositive() {
		l, err := m.redeemStable(remaining, lstSol)
		if err != nil {
			return refLeg{}, err
		}
		total.out, total.fee = total.out.Add(l.out), total.fee.Add(l.fee)
	}
	if lever.IsPositive() {
		l, err := m.redeemLever(lever, lstSol)
		if err != nil {
			return refLeg{}, err
		}
		total.out, total.fee = total.out.Add(l.out), total.fee.Add(l.fee)
	}
	total.base = total.out.Add(total.fee)
	return total, nil
}
