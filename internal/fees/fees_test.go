package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

func TestNewExtract(t *testing.T) {
	tests := []struct {
		name          string
		feeBps        uint64
		amount        uint64
		wantFees      uint64
		wantRemaining uint64
		wantErr       bool
	}{
		{name: "50 bps", feeBps: 50, amount: 69_618_816_010, wantFees: 348_094_081, wantRemaining: 69_270_721_929},
		{name: "zero fee", feeBps: 0, amount: 1_000, wantFees: 0, wantRemaining: 1_000},
		{name: "rounds up", feeBps: 1, amount: 1, wantFees: 1, wantRemaining: 0},
		{name: "above 100%", feeBps: 10_001, amount: 69_618_816_010, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewExtract(fix.New[fix.N4](tt.feeBps), fix.New[fix.N9](tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExtraction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFees, out.Fees.Bits())
			assert.Equal(t, tt.wantRemaining, out.Remaining.Bits())
			assert.Equal(t, tt.amount, out.Fees.Bits()+out.Remaining.Bits())
		})
	}
}

func TestPairValidate(t *testing.T) {
	assert.NoError(t, NewPair(50, 9_999).Validate())
	assert.ErrorIs(t, NewPair(10_000, 0).Validate(), ErrInvalidFees)
	assert.ErrorIs(t, NewPair(0, 10_000).Validate(), ErrInvalidFees)
}

func TestStablecoinFees(t *testing.T) {
	f := StablecoinFees{Normal: NewPair(5, 10), Mode1: NewPair(20, 30)}
	require.NoError(t, f.Validate())

	tests := []struct {
		mode    stability.Mode
		mint    uint64
		mintErr error
		redeem  uint64
	}{
		{mode: stability.Normal, mint: 5, redeem: 10},
		{mode: stability.Mode1, mint: 20, redeem: 30},
		{mode: stability.Mode2, mintErr: ErrNoStablecoinMintFee, redeem: 0},
		{mode: stability.Depeg, mintErr: ErrNoStablecoinMintFee, redeem: 0},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			mint, err := f.MintFee(tt.mode)
			if tt.mintErr != nil {
				assert.ErrorIs(t, err, tt.mintErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.mint, mint.Bits())
			}
			redeem, err := f.RedeemFee(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.redeem, redeem.Bits())
		})
	}
}

func TestLevercoinFees(t *testing.T) {
	f := LevercoinFees{Normal: NewPair(10, 20), Mode1: NewPair(30, 40), Mode2: NewPair(50, 60)}
	require.NoError(t, f.Validate())

	mint, err := f.MintFee(stability.Mode2)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), mint.Bits())

	_, err = f.MintFee(stability.Depeg)
	assert.ErrorIs(t, err, ErrNoLevercoinMintFee)
	_, err = f.RedeemFee(stability.Depeg)
	assert.ErrorIs(t, err, ErrNoLevercoinRedeemFee)

	to, err := f.SwapToStablecoinFee(stability.Mode1)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), to.Bits())
	_, err = f.SwapToStablecoinFee(stability.Mode2)
	assert.ErrorIs(t, err, ErrNoSwapFee)

	from, err := f.SwapFromStablecoinFee(stability.Mode2)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), from.Bits())
	_, err = f.SwapFromStablecoinFee(stability.Depeg)
	assert.ErrorIs(t, err, ErrNoSwapFee)

	bad := f
	bad.Mode2 = NewPair(10_000, 0)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidFees)
}

func n9(v uint64) fix.UFix64[fix.N9] { return fix.New[fix.N9](v) }

func TestDefaultCurves(t *testing.T) {
	curves, err := DefaultCurves()
	require.NoError(t, err)
	assert.Equal(t, 1, curves.Version)
	assert.Equal(t, 21, curves.Mint.Curve().Len())
	assert.Equal(t, 20, curves.Redeem.Curve().Len())

	mintFloor, err := curves.Mint.CRFloor()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), mintFloor.Bits())
	redeemFloor, err := curves.Redeem.CRFloor()
	require.NoError(t, err)
	assert.Equal(t, uint64(130), redeemFloor.Bits())
}

func TestCurveFee(t *testing.T) {
	curves, err := DefaultCurves()
	require.NoError(t, err)

	tests := []struct {
		name    string
		curve   *CurveController
		cr      uint64
		want    uint64
		wantErr error
	}{
		{name: "mint below domain", curve: curves.Mint, cr: 1_300_000_000, wantErr: ErrNoStablecoinMintFee},
		{name: "mint at floor", curve: curves.Mint, cr: 1_500_000_000, want: 200},
		{name: "mint interior", curve: curves.Mint, cr: 1_505_000_000, want: 190},
		{name: "mint truncates cr", curve: curves.Mint, cr: 1_510_009_999, want: 180},
		{name: "mint above domain", curve: curves.Mint, cr: 4_000_000_000, want: 0},
		{name: "redeem below domain", curve: curves.Redeem, cr: 1_000_000_000, want: 0},
		{name: "redeem midpoint", curve: curves.Redeem, cr: 1_310_000_000, want: 23},
		{name: "redeem interior", curve: curves.Redeem, cr: 1_510_000_000, want: 203},
		{name: "redeem above domain", curve: curves.Redeem, cr: 3_500_000_000, want: 300},
		{name: "unbounded cr", curve: curves.Redeem, cr: ^uint64(0), want: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := tt.curve.Fee(n9(tt.cr))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, fee.Bits())
		})
	}
}

func TestNarrowCR(t *testing.T) {
	tests := []struct {
		name string
		cr   uint64
		want int64
	}{
		{name: "truncates below n5", cr: 1_350_009_999, want: 135_000},
		{name: "zero", cr: 0, want: 0},
		{name: "largest n9 ratio", cr: ^uint64(0), want: int64(^uint64(0) / 10_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NarrowCR(fix.New[fix.N9](tt.cr))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Bits())
		})
	}
}

func TestApplyCurve(t *testing.T) {
	curves, err := DefaultCurves()
	require.NoError(t, err)

	out, err := ApplyCurve(curves.Redeem, n9(1_510_000_000), n9(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_030_000), out.Fees.Bits())
	assert.Equal(t, uint64(997_970_000), out.Remaining.Bits())
}

func TestParseCurvesRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not toml", doc: "version = ["},
		{name: "missing version", doc: "[mint]\npoints = [[1, 1], [2, 2]]\n[redeem]\npoints = [[1, 1], [2, 2]]"},
		{name: "bad arity", doc: "version = 1\n[mint]\npoints = [[1, 1, 1], [2, 2]]\n[redeem]\npoints = [[1, 1], [2, 2]]"},
		{name: "not monotonic", doc: "version = 1\n[mint]\npoints = [[2, 1], [1, 2]]\n[redeem]\npoints = [[1, 1], [2, 2]]"},
		{name: "too short", doc: "version = 1\n[mint]\npoints = [[1, 1], [2, 2]]\n[redeem]\npoints = [[1, 1]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCurves([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrCurveTable)
		})
	}
}

func TestCollateralFees(t *testing.T) {
	curves, err := DefaultCurves()
	require.NoError(t, err)

	in := Inputs{Mode: stability.Mode1, CR: n9(1_510_000_000)}

	curve := CurveFees{Mint: curves.Mint, Redeem: curves.Redeem}
	rate, err := curve.MintRate(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(180), rate.Bits())

	table := TableFees{Controller: StablecoinFees{Normal: NewPair(5, 10), Mode1: NewPair(20, 30)}}
	rate, err = table.MintRate(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), rate.Bits())
	rate, err = table.RedeemRate(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), rate.Bits())

	_, err = table.MintRate(Inputs{Mode: stability.Depeg})
	assert.ErrorIs(t, err, ErrNoStablecoinMintFee)
}

func TestSwapConfigs(t *testing.T) {
	cfg, err := NewLstSwapConfig(fix.New[fix.N4](50))
	require.NoError(t, err)
	out, err := ApplyLstSwapFee(cfg, n9(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), out.Fees.Bits())
	assert.Equal(t, uint64(995_000_000), out.Remaining.Bits())

	require.NoError(t, cfg.Update(fix.New[fix.N4](100)))
	assert.Equal(t, uint64(100), cfg.Fee.Bits())
	assert.ErrorIs(t, cfg.Update(fix.Zero[fix.N4]()), ErrInvalidFees)

	_, err = NewLstSwapConfig(fix.New[fix.N4](10_000))
	assert.ErrorIs(t, err, ErrInvalidFees)

	asset, err := NewAssetSwapConfig(fix.New[fix.N4](50))
	require.NoError(t, err)
	aout, err := ApplyAssetSwapFee(asset, n9(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(995_000_000), aout.Remaining.Bits())

	_, err = NewAssetSwapConfig(fix.Zero[fix.N4]())
	assert.ErrorIs(t, err, ErrInvalidFees)
}

func TestFundingRate(t *testing.T) {
	f := FundingRate{Rate: fix.New[fix.N8](38_462)}
	require.NoError(t, f.Validate())

	out, err := ApplyFunding(f, fix.New[fix.N6](1_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(384_620_000), out.Bits())

	assert.ErrorIs(t, FundingRate{}.Validate(), ErrFundingRateValidation)
	assert.ErrorIs(t, FundingRate{Rate: fix.New[fix.N8](60_001)}.Validate(), ErrFundingRateValidation)
	assert.NoError(t, FundingRate{Rate: MaxFundingRate}.Validate())
}
