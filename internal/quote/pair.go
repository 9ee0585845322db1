package quote

import (
	"fmt"

	"github.com/samber/lo"
)

// Operation is the protocol instruction a pair settles through.
type Operation uint8

const (
	MintStablecoin Operation = iota
	RedeemStablecoin
	MintLevercoin
	RedeemLevercoin
	SwapStableToLever
	SwapLeverToStable
	LstSwap
	DepositToStabilityPool
	WithdrawFromStabilityPool
	WithdrawAndRedeem
	ExoMintStablecoin
	ExoRedeemStablecoin
	ExoMintLevercoin
	ExoRedeemLevercoin
)

func (o Operation) String() string {
	switch o {
	case MintStablecoin:
		return "mint_stablecoin"
	case RedeemStablecoin:
		return "redeem_stablecoin"
	case MintLevercoin:
		return "mint_levercoin"
	case RedeemLevercoin:
		return "redeem_levercoin"
	case SwapStableToLever:
		return "swap_stable_to_lever"
	case SwapLeverToStable:
		return "swap_lever_to_stable"
	case LstSwap:
		return "lst_swap"
	case DepositToStabilityPool:
		return "user_deposit"
	case WithdrawFromStabilityPool:
		return "user_withdraw"
	case WithdrawAndRedeem:
		return "withdraw_and_redeem"
	case ExoMintStablecoin:
		return "exo_mint_stablecoin"
	case ExoRedeemStablecoin:
		return "exo_redeem_stablecoin"
	case ExoMintLevercoin:
		return "exo_mint_levercoin"
	case ExoRedeemLevercoin:
		return "exo_redeem_levercoin"
	default:
		return fmt.Sprintf("operation(%d)", uint8(o))
	}
}

func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Operation) UnmarshalText(b []byte) error {
	for op := MintStablecoin; op <= ExoRedeemLevercoin; op++ {
		if op.String() == string(b) {
			*o = op
			return nil
		}
	}
	return fmt.Errorf("unknown operation %q", b)
}

// Pair is a directed token pair.
type Pair struct {
	In  Token `json:"in"`
	Out Token `json:"out"`
}

func NewPair(in, out Token) Pair { return Pair{In: in, Out: out} }

func (p Pair) String() string { return p.In.Symbol + "->" + p.Out.Symbol }

// Operation resolves the instruction behind a pair.
func (p Pair) Operation() (Operation, error) {
	in, out := p.In.Kind, p.Out.Kind
	switch {
	case in == KindLst && out == KindStablecoin:
		return MintStablecoin, nil
	case in == KindStablecoin && out == KindLst:
		return RedeemStablecoin, nil
	case in == KindLst && out == KindLevercoin:
		return MintLevercoin, nil
	case in == KindLevercoin && out == KindLst:
		return RedeemLevercoin, nil
	case in == KindStablecoin && out == KindLevercoin:
		return SwapStableToLever, nil
	case in == KindLevercoin && out == KindStablecoin:
		return SwapLeverToStable, nil
	case in == KindLst && out == KindLst && p.In != p.Out:
		return LstSwap, nil
	case in == KindStablecoin && out == KindLpToken:
		return DepositToStabilityPool, nil
	case in == KindLpToken && out == KindStablecoin:
		return WithdrawFromStabilityPool, nil
	case in == KindLpToken && out == KindLst:
		return WithdrawAndRedeem, nil
	case in == KindExoCollateral && out == KindStablecoin:
		return ExoMintStablecoin, nil
	case in == KindStablecoin && out == KindExoCollateral:
		return ExoRedeemStablecoin, nil
	case in == KindExoCollateral && out == KindExoLevercoin:
		return ExoMintLevercoin, nil
	case in == KindExoLevercoin && out == KindExoCollateral:
		return ExoRedeemLevercoin, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedPair, p)
	}
}

// Pairs lists every supported pair. Exogenous pairs are included only when
// withExo is set.
func Pairs(withExo bool) []Pair {
	tokens := Tokens()
	all := lo.FlatMap(tokens, func(in Token, _ int) []Pair {
		return lo.Map(tokens, func(out Token, _ int) Pair { return NewPair(in, out) })
	})
	return lo.Filter(all, func(p Pair, _ int) bool {
		op, err := p.Operation()
		if err != nil {
			return false
		}
		return withExo || !op.Exo()
	})
}

func (o Operation) Exo() bool {
	switch o {
	case ExoMintStablecoin, ExoRedeemStablecoin, ExoMintLevercoin, ExoRedeemLevercoin:
		return true
	default:
		return false
	}
}
