package quote

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/exchange"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

// AllowedIn reports whether the protocol accepts the operation in mode.
// Stability pool deposits close in Depeg while plain withdrawals stay open,
// so LP holders can always exit.
func (o Operation) AllowedIn(mode stability.Mode) bool {
	switch o {
	case MintStablecoin, SwapLeverToStable, ExoMintStablecoin:
		return mode == stability.Normal || mode == stability.Mode1
	case RedeemStablecoin, LstSwap, WithdrawFromStabilityPool, ExoRedeemStablecoin:
		return true
	case DepositToStabilityPool:
		return mode != stability.Depeg
	case MintLevercoin, RedeemLevercoin, SwapStableToLever, WithdrawAndRedeem,
		ExoMintLevercoin, ExoRedeemLevercoin:
		return mode != stability.Depeg
	default:
		return false
	}
}

// PairsForMode lists the LST pairs quotable in mode.
func PairsForMode(mode stability.Mode) []Pair {
	var out []Pair
	for _, p := range Pairs(false) {
		op, _ := p.Operation()
		if op.AllowedIn(mode) {
			out = append(out, p)
		}
	}
	return out
}

// Compute quotes amountIn of pair.In against the state. It has no side
// effects and returns a typed error for every rejected input.
func (s *State) Compute(pair Pair, amountIn uint64) (OperationOutput, error) {
	op, err := pair.Operation()
	if err != nil {
		return OperationOutput{}, err
	}
	if amountIn == 0 {
		return OperationOutput{}, ErrZeroAmount
	}
	mode := s.lst.Mode()
	if op.Exo() {
		exo, err := s.Exo()
		if err != nil {
			return OperationOutput{}, err
		}
		mode = exo.Mode()
	}
	if !op.AllowedIn(mode) {
		return OperationOutput{}, fmt.Errorf("%w: %s in %s", ErrOperationDisabled, op, mode)
	}

	switch op {
	case MintStablecoin:
		return s.mintStablecoin(pair.In, amountIn)
	case RedeemStablecoin:
		return s.redeemStablecoin(pair.Out, amountIn)
	case MintLevercoin:
		return s.mintLevercoin(pair.In, amountIn)
	case RedeemLevercoin:
		return s.redeemLevercoin(pair.Out, amountIn)
	case SwapStableToLever:
		return swapStableToLever(s.lst, amountIn)
	case SwapLeverToStable:
		return swapLeverToStable(s.lst, amountIn)
	case LstSwap:
		return s.lstSwap(pair.In, pair.Out, amountIn)
	case DepositToStabilityPool:
		return s.deposit(amountIn)
	case WithdrawFromStabilityPool:
		return s.withdraw(amountIn)
	case WithdrawAndRedeem:
		return s.withdrawAndRedeem(pair.Out, amountIn)
	case ExoMintStablecoin:
		return s.exoMintStablecoin(amountIn)
	case ExoRedeemStablecoin:
		return s.exoRedeemStablecoin(amountIn)
	case ExoMintLevercoin:
		return s.exoMintLevercoin(amountIn)
	case ExoRedeemLevercoin:
		return s.exoRedeemLevercoin(amountIn)
	default:
		return OperationOutput{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, pair)
	}
}

func (s *State) mintStablecoin(lst Token, amountIn uint64) (OperationOutput, error) {
	price, err := s.LstPrice(lst)
	if err != nil {
		return OperationOutput{}, err
	}
	amount := fix.New[fix.N9](amountIn)
	ex, err := s.lst.StablecoinMintFee(price, amount)
	if err != nil {
		return OperationOutput{}, err
	}
	conv, err := s.lst.TokenConversion(price)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := s.lst.StablecoinNav()
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err := conv.LstToToken(ex.Remaining, nav)
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err = s.lst.ValidateStablecoinAmount(minted)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: minted.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   lst,
		FeeBase:   amountIn,
	}, nil
}

func (s *State) redeemStablecoin(lst Token, amountIn uint64) (OperationOutput, error) {
	price, err := s.LstPrice(lst)
	if err != nil {
		return OperationOutput{}, err
	}
	conv, err := s.lst.TokenConversion(price)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := s.lst.StablecoinNav()
	if err != nil {
		return OperationOutput{}, err
	}
	lstOut, err := conv.TokenToLst(fix.New[fix.N6](amountIn), nav)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := s.lst.StablecoinRedeemFee(price, lstOut)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   lst,
		FeeBase:   lstOut.Bits(),
	}, nil
}

func (s *State) mintLevercoin(lst Token, amountIn uint64) (OperationOutput, error) {
	price, err := s.LstPrice(lst)
	if err != nil {
		return OperationOutput{}, err
	}
	amount := fix.New[fix.N9](amountIn)
	ex, err := s.lst.LevercoinMintFee(price, amount)
	if err != nil {
		return OperationOutput{}, err
	}
	conv, err := s.lst.TokenConversion(price)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := s.lst.LevercoinMintNav()
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err := conv.LstToToken(ex.Remaining, nav)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: minted.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   lst,
		FeeBase:   amountIn,
	}, nil
}

func (s *State) redeemLevercoin(lst Token, amountIn uint64) (OperationOutput, error) {
	price, err := s.LstPrice(lst)
	if err != nil {
		return OperationOutput{}, err
	}
	conv, err := s.lst.TokenConversion(price)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := s.lst.LevercoinRedeemNav()
	if err != nil {
		return OperationOutput{}, err
	}
	lstOut, err := conv.TokenToLst(fix.New[fix.N6](amountIn), nav)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := s.lst.LevercoinRedeemFee(price, lstOut)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   lst,
		FeeBase:   lstOut.Bits(),
	}, nil
}

func swapStableToLever(ctx exchange.Context, amountIn uint64) (OperationOutput, error) {
	amount := fix.New[fix.N6](amountIn)
	ex, err := ctx.StablecoinToLevercoinFee(amount)
	if err != nil {
		return OperationOutput{}, err
	}
	conv, err := ctx.SwapConversion()
	if err != nil {
		return OperationOutput{}, err
	}
	out, err := conv.StableToLever(ex.Remaining)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: out.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   HYUSD,
		FeeBase:   amountIn,
	}, nil
}

func swapLeverToStable(ctx exchange.Context, amountIn uint64) (OperationOutput, error) {
	conv, err := ctx.SwapConversion()
	if err != nil {
		return OperationOutput{}, err
	}
	total, err := conv.LeverToStable(fix.New[fix.N6](amountIn))
	if err != nil {
		return OperationOutput{}, err
	}
	total, err = ctx.ValidateStablecoinSwapAmount(total)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := ctx.LevercoinToStablecoinFee(total)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   HYUSD,
		FeeBase:   total.Bits(),
	}, nil
}

func (s *State) lstSwap(in, out Token, amountIn uint64) (OperationOutput, error) {
	cfg := s.snapshot.Config.LstSwap
	if cfg.Fee.IsZero() {
		return OperationOutput{}, fmt.Errorf("%w: lst swap fee not configured", ErrOperationDisabled)
	}
	from, err := s.LstPrice(in)
	if err != nil {
		return OperationOutput{}, err
	}
	to, err := s.LstPrice(out)
	if err != nil {
		return OperationOutput{}, err
	}
	converted, err := from.ConvertLst(s.clock.Epoch(), fix.New[fix.N9](amountIn), to)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := fees.ApplyLstSwapFee(cfg, converted)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   out,
		FeeBase:   converted.Bits(),
	}, nil
}

func (s *State) deposit(amountIn uint64) (OperationOutput, error) {
	nav, err := s.lpTokenNav()
	if err != nil {
		return OperationOutput{}, err
	}
	lp, err := calc.LpTokenOut(fix.New[fix.N6](amountIn), nav)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: lp.Bits(),
		FeeMint:   HYUSD,
		FeeBase:   amountIn,
	}, nil
}

// proRata returns the stablecoin and levercoin an LP amount redeems.
func (s *State) proRata(amountIn uint64) (stable, lever fix.UFix64[fix.N6], err error) {
	supply := s.snapshot.LpSupply
	amount := fix.New[fix.N6](amountIn)
	if supply.IsZero() || amount.Gt(supply) {
		return stable, lever, fmt.Errorf("%w: %s of %s lp supply", calc.ErrTokenWithdraw, amount, supply)
	}
	pool := s.snapshot.Pool
	if stable, err = calc.AmountTokenToWithdraw(amount, supply, pool.Stablecoin); err != nil {
		return stable, lever, err
	}
	lever, err = calc.AmountTokenToWithdraw(amount, supply, pool.Levercoin)
	return stable, lever, err
}

func (s *State) withdraw(amountIn uint64) (OperationOutput, error) {
	if !s.snapshot.Pool.Levercoin.IsZero() {
		return OperationOutput{}, ErrLevercoinInPool
	}
	stable, _, err := s.proRata(amountIn)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := fees.NewExtract(s.snapshot.Config.WithdrawalFee, stable)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   HYUSD,
		FeeBase:   stable.Bits(),
	}, nil
}

// withdrawAndRedeem redeems both pool legs into one LST. The fee reported is
// the LST charged by the two redemptions; the pool withdrawal fee stays in
// stablecoin and only shrinks the stablecoin leg.
func (s *State) withdrawAndRedeem(lst Token, amountIn uint64) (OperationOutput, error) {
	stable, lever, err := s.proRata(amountIn)
	if err != nil {
		return OperationOutput{}, err
	}
	snav, err := s.lst.StablecoinNav()
	if err != nil {
		return OperationOutput{}, err
	}
	lnav, err := s.lst.LevercoinMintNav()
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := calc.StablecoinWithdrawalFee(s.snapshot.Pool.Stablecoin, stable, snav, lever, lnav, s.snapshot.Config.WithdrawalFee)
	if err != nil {
		return OperationOutput{}, err
	}

	var legs [2]OperationOutput
	if !ex.Remaining.IsZero() {
		if legs[0], err = s.redeemStablecoin(lst, ex.Remaining.Bits()); err != nil {
			return OperationOutput{}, err
		}
	}
	if !lever.IsZero() {
		if legs[1], err = s.redeemLevercoin(lst, lever.Bits()); err != nil {
			return OperationOutput{}, err
		}
	}
	out, err := fix.New[fix.N9](legs[0].OutAmount).CheckedAdd(fix.New[fix.N9](legs[1].OutAmount))
	if err != nil {
		return OperationOutput{}, ErrOutputOverflow
	}
	fee, err := fix.New[fix.N9](legs[0].FeeAmount).CheckedAdd(fix.New[fix.N9](legs[1].FeeAmount))
	if err != nil {
		return OperationOutput{}, ErrOutputOverflow
	}
	base, err := out.CheckedAdd(fee)
	if err != nil {
		return OperationOutput{}, ErrOutputOverflow
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: out.Bits(),
		FeeAmount: fee.Bits(),
		FeeMint:   lst,
		FeeBase:   base.Bits(),
	}, nil
}

func (s *State) exoMintStablecoin(amountIn uint64) (OperationOutput, error) {
	exo := s.exo
	amount := fix.New[fix.N9](amountIn)
	ex, err := exo.StablecoinMintFee(amount)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := exo.StablecoinNav()
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err := exo.ExoConversion().ExoToToken(ex.Remaining, nav)
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err = exo.ValidateStablecoinAmount(minted)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: minted.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   WBTC,
		FeeBase:   amountIn,
	}, nil
}

func (s *State) exoRedeemStablecoin(amountIn uint64) (OperationOutput, error) {
	exo := s.exo
	nav, err := exo.StablecoinNav()
	if err != nil {
		return OperationOutput{}, err
	}
	out, err := exo.ExoConversion().TokenToExo(fix.New[fix.N6](amountIn), nav)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := exo.StablecoinRedeemFee(out)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   WBTC,
		FeeBase:   out.Bits(),
	}, nil
}

func (s *State) exoMintLevercoin(amountIn uint64) (OperationOutput, error) {
	exo := s.exo
	amount := fix.New[fix.N9](amountIn)
	ex, err := exo.LevercoinMintFee(amount)
	if err != nil {
		return OperationOutput{}, err
	}
	nav, err := exo.LevercoinMintNav()
	if err != nil {
		return OperationOutput{}, err
	}
	minted, err := exo.ExoConversion().ExoToToken(ex.Remaining, nav)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: minted.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   WBTC,
		FeeBase:   amountIn,
	}, nil
}

func (s *State) exoRedeemLevercoin(amountIn uint64) (OperationOutput, error) {
	exo := s.exo
	nav, err := exo.LevercoinRedeemNav()
	if err != nil {
		return OperationOutput{}, err
	}
	out, err := exo.ExoConversion().TokenToExo(fix.New[fix.N6](amountIn), nav)
	if err != nil {
		return OperationOutput{}, err
	}
	ex, err := exo.LevercoinRedeemFee(out)
	if err != nil {
		return OperationOutput{}, err
	}
	return OperationOutput{
		InAmount:  amountIn,
		OutAmount: ex.Remaining.Bits(),
		FeeAmount: ex.Fees.Bits(),
		FeeMint:   WBTC,
		FeeBase:   out.Bits(),
	}, nil
}
