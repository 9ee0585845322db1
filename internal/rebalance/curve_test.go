package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

var (
	testOracle = oracle.OraclePrice{
		Spot: fix.New[fix.N9](146_401_109_370),
		Conf: fix.New[fix.N9](94_635_820),
	}
	sellConfig = NewCurveConfig(fix.New[fix.N2](200), fix.New[fix.N2](100))
	buyConfig  = NewCurveConfig(fix.New[fix.N2](100), fix.New[fix.N2](100))
)

func cr(bits uint64) fix.UFix64[fix.N9] { return fix.New[fix.N9](bits) }

func TestCurveConfigValidate(t *testing.T) {
	assert.NoError(t, sellConfig.Validate())
	assert.ErrorIs(t, NewCurveConfig(fix.Zero[fix.N2](), fix.One[fix.N2]()).Validate(), ErrCurveConfig)
	assert.ErrorIs(t, NewCurveConfig(fix.One[fix.N2](), fix.Zero[fix.N2]()).Validate(), ErrCurveConfig)
}

func TestSellCurve(t *testing.T) {
	curve, err := NewSellCurve(testOracle, sellConfig)
	require.NoError(t, err)

	floor, err := curve.Price(cr(1_200_000_000))
	require.NoError(t, err)
	ceil, err := curve.Price(cr(1_350_000_000))
	require.NoError(t, err)

	assert.Equal(t, uint64(146_401_109_370-2*94_635_820), floor.Bits())
	assert.Equal(t, uint64(146_401_109_370+94_635_820), ceil.Bits())
	assert.True(t, floor.Lt(ceil))

	t.Run("flat below domain", func(t *testing.T) {
		for _, x := range []uint64{0, 1_000_000_000, 1_150_000_000} {
			p, err := curve.Price(cr(x))
			require.NoError(t, err)
			assert.Equal(t, floor, p)
		}
	})

	t.Run("inactive above domain", func(t *testing.T) {
		_, err := curve.Price(cr(1_400_000_000))
		assert.ErrorIs(t, err, ErrSellInactive)
	})

	t.Run("monotonic inside domain", func(t *testing.T) {
		prev := floor
		for x := uint64(1_200_000_000); x <= 1_350_000_000; x += 7_500_000 {
			p, err := curve.Price(cr(x))
			require.NoError(t, err)
			assert.True(t, p.Gte(prev))
			prev = p
		}
	})
}

func TestBuyCurve(t *testing.T) {
	curve, err := NewBuyCurve(testOracle, buyConfig)
	require.NoError(t, err)

	floor, err := curve.Price(cr(1_650_000_000))
	require.NoError(t, err)
	ceil, err := curve.Price(cr(1_750_000_000))
	require.NoError(t, err)
	assert.True(t, floor.Lt(ceil))

	t.Run("inactive below domain", func(t *testing.T) {
		_, err := curve.Price(cr(1_600_000_000))
		assert.ErrorIs(t, err, ErrBuyInactive)
	})

	t.Run("flat above domain", func(t *testing.T) {
		high, err := curve.Price(cr(1_800_000_000))
		require.NoError(t, err)
		higher, err := curve.Price(cr(2_500_000_000))
		require.NoError(t, err)
		assert.Equal(t, ceil, high)
		assert.Equal(t, high, higher)
	})
}

func TestCurveRejectsWideConfidence(t *testing.T) {
	wide := oracle.OraclePrice{Spot: testOracle.Spot, Conf: testOracle.Spot}

	_, err := NewSellCurve(wide, sellConfig)
	assert.ErrorIs(t, err, ErrPriceConstruction)

	_, err = NewBuyCurve(wide, buyConfig)
	assert.ErrorIs(t, err, ErrPriceConstruction)
}

func TestPreview(t *testing.T) {
	price := fix.New[fix.N9](100_000_000_000)
	oraclePrice := oracle.OraclePrice{Spot: price, Conf: fix.New[fix.N9](100_000_000)}

	tests := []struct {
		name    string
		cr      uint64
		stable  uint64
		side    Side
		wantErr error
	}{
		{"sell at low cr", 1_250_000_000, 8_000_000_000, SideSell, nil},
		{"buy at high cr", 2_000_000_000, 5_000_000_000, SideBuy, nil},
		{"no route in the middle", 1_500_000_000, 6_666_666_666, "", ErrNoRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer, err := Preview(State{
				CR:              cr(tt.cr),
				Oracle:          oraclePrice,
				VirtualStable:   fix.New[fix.N6](tt.stable),
				TotalCollateral: fix.New[fix.N9](100_000_000_000),
			}, sellConfig, buyConfig)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.side, offer.Side)
			assert.False(t, offer.MaxCollateral.IsZero())
			assert.False(t, offer.Price.IsZero())
		})
	}
}
