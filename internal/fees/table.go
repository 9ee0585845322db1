package fees

import (
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

// Pair holds mint and redeem rates for one stability mode.
type Pair struct {
	Mint   fix.UFix64[fix.N4] `json:"mint" yaml:"mint"`
	Redeem fix.UFix64[fix.N4] `json:"redeem" yaml:"redeem"`
}

func NewPair(mintBps, redeemBps uint64) Pair {
	return Pair{Mint: fix.New[fix.N4](mintBps), Redeem: fix.New[fix.N4](redeemBps)}
}

func (p Pair) Validate() error {
	one := fix.One[fix.N4]()
	if p.Mint.Lt(one) && p.Redeem.Lt(one) {
		return nil
	}
	return ErrInvalidFees
}

// Controller resolves mint and redeem rates from a stability mode.
type Controller interface {
	MintFee(mode stability.Mode) (fix.UFix64[fix.N4], error)
	RedeemFee(mode stability.Mode) (fix.UFix64[fix.N4], error)
	Validate() error
}

// StablecoinFees disables minting from Mode2 onward and waives redemption
// fees there.
type StablecoinFees struct {
	Normal Pair `json:"normal" yaml:"normal"`
	Mode1  Pair `json:"mode1" yaml:"mode1"`
}

func (s StablecoinFees) MintFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	switch mode {
	case stability.Normal:
		return s.Normal.Mint, nil
	case stability.Mode1:
		return s.Mode1.Mint, nil
	default:
		return fix.UFix64[fix.N4]{}, ErrNoStablecoinMintFee
	}
}

func (s StablecoinFees) RedeemFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	switch mode {
	case stability.Normal:
		return s.Normal.Redeem, nil
	case stability.Mode1:
		return s.Mode1.Redeem, nil
	default:
		return fix.Zero[fix.N4](), nil
	}
}

func (s StablecoinFees) Validate() error {
	if err := s.Normal.Validate(); err != nil {
		return err
	}
	return s.Mode1.Validate()
}

// LevercoinFees has rates through Mode2; nothing is valid in Depeg.
type LevercoinFees struct {
	Normal Pair `json:"normal" yaml:"normal"`
	Mode1  Pair `json:"mode1" yaml:"mode1"`
	Mode2  Pair `json:"mode2" yaml:"mode2"`
}

func (l LevercoinFees) pair(mode stability.Mode) (Pair, bool) {
	switch mode {
	case stability.Normal:
		return l.Normal, true
	case stability.Mode1:
		return l.Mode1, true
	case stability.Mode2:
		return l.Mode2, true
	default:
		return Pair{}, false
	}
}

func (l LevercoinFees) MintFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	p, ok := l.pair(mode)
	if !ok {
		return fix.UFix64[fix.N4]{}, ErrNoLevercoinMintFee
	}
	return p.Mint, nil
}

func (l LevercoinFees) RedeemFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	p, ok := l.pair(mode)
	if !ok {
		return fix.UFix64[fix.N4]{}, ErrNoLevercoinRedeemFee
	}
	return p.Redeem, nil
}

// SwapToStablecoinFee charges the redeem rate and is unavailable once the
// protocol is in Mode2, since the swap mints stablecoin.
func (l LevercoinFees) SwapToStablecoinFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	if mode >= stability.Mode2 {
		return fix.UFix64[fix.N4]{}, ErrNoSwapFee
	}
	p, _ := l.pair(mode)
	return p.Redeem, nil
}

// SwapFromStablecoinFee charges the mint rate.
func (l LevercoinFees) SwapFromStablecoinFee(mode stability.Mode) (fix.UFix64[fix.N4], error) {
	p, ok := l.pair(mode)
	if !ok {
		return fix.UFix64[fix.N4]{}, ErrNoSwapFee
	}
	return p.Mint, nil
}

func (l LevercoinFees) Validate() error {
	for _, p := range []Pair{l.Normal, l.Mode1, l.Mode2} {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Controller = StablecoinFees{}
	_ Controller = LevercoinFees{}
)
