package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/oracle"
)

func TestStabilityPoolCap(t *testing.T) {
	capUsd, err := StabilityPoolCap(fix.One[fix.N9](), fix.New[fix.N6](50_000_000), fix.New[fix.N9](2_000_000_000), fix.New[fix.N6](10_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(70_000_000), capUsd.Bits())
}

func TestLpTokenNav(t *testing.T) {
	tests := []struct {
		name     string
		stable   uint64
		lever    uint64
		supply   uint64
		expected uint64
	}{
		{"empty pool", 0, 0, 0, 1_000_000},
		{"appreciated pool rounds up", 1_000_000_000, 0, 950_000_000, 1_052_632},
		{"mixed pool", 500_000_000, 100_000_000, 600_000_000, 1_166_667},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav, err := LpTokenNav(fix.One[fix.N9](), fix.New[fix.N6](tt.stable), fix.New[fix.N9](2_000_000_000), fix.New[fix.N6](tt.lever), fix.New[fix.N6](tt.supply))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, nav.Bits())
		})
	}
}

func TestLpTokenOut(t *testing.T) {
	out, err := LpTokenOut(fix.New[fix.N6](100_000_000), fix.New[fix.N6](1_052_632))
	require.NoError(t, err)
	assert.Equal(t, uint64(94_999_962), out.Bits())

	_, err = LpTokenOut(fix.New[fix.N6](1), fix.Zero[fix.N6]())
	assert.ErrorIs(t, err, ErrLpTokenOut)
}

func TestAmountTokenToWithdraw(t *testing.T) {
	out, err := AmountTokenToWithdraw(fix.New[fix.N6](250_000_000), fix.New[fix.N6](1_000_000_000), fix.New[fix.N6](999_999_999))
	require.NoError(t, err)
	assert.Equal(t, uint64(249_999_999), out.Bits())

	_, err = AmountTokenToWithdraw(fix.One[fix.N6](), fix.Zero[fix.N6](), fix.One[fix.N6]())
	assert.ErrorIs(t, err, ErrTokenWithdraw)
}

func TestAmountStableToSwap(t *testing.T) {
	tvl := fix.New[fix.N9](14_578_550_000_000)
	threshold := fix.New[fix.N2](130)

	tests := []struct {
		name     string
		pool     uint64
		supply   uint64
		expected uint64
	}{
		{"pool smaller than excess", 69_999_000, 12_677_000_000, 69_999_000},
		{"excess smaller than pool", 9_006_000_000, 12_677_000_000, 1_462_730_770},
		{"whole supply in pool", 11_896_111_000, 11_896_111_000, 681_841_770},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := AmountStableToSwap(fix.New[fix.N6](tt.pool), threshold, fix.New[fix.N6](tt.supply), tvl)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Bits())
		})
	}

	t.Run("already above threshold", func(t *testing.T) {
		_, err := AmountStableToSwap(fix.New[fix.N6](1), threshold, fix.New[fix.N6](1_000_000), tvl)
		assert.ErrorIs(t, err, ErrStablecoinToSwap)
	})
}

func TestAmountLeverToSwap(t *testing.T) {
	nav := oracle.NewRange(fix.New[fix.N9](2_000_000_000), fix.New[fix.N9](2_200_000_000))

	tests := []struct {
		name     string
		max      uint64
		expected uint64
	}{
		{"whole pool fits", 30_000_000, 10_000_000},
		{"exactly at limit", 20_000_000, 10_000_000},
		{"capped by max swappable", 15_000_000, 6_818_181},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := AmountLeverToSwap(fix.New[fix.N6](10_000_000), nav, fix.New[fix.N6](tt.max))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out.Bits())
		})
	}
}

func TestStablecoinWithdrawalFee(t *testing.T) {
	tests := []struct {
		name      string
		inPool    uint64
		fees      uint64
		remaining uint64
	}{
		{"fee charged on whole allocation", 100_000_000, 350_000, 49_650_000},
		{"fee capped at pool stablecoin", 100_000, 100_000, 49_900_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := StablecoinWithdrawalFee(
				fix.New[fix.N6](tt.inPool),
				fix.New[fix.N6](50_000_000),
				fix.One[fix.N9](),
				fix.New[fix.N6](10_000_000),
				fix.New[fix.N9](2_000_000_000),
				fix.New[fix.N4](50),
			)
			require.NoError(t, err)
			assert.Equal(t, tt.fees, ex.Fees.Bits())
			assert.Equal(t, tt.remaining, ex.Remaining.Bits())
		})
	}

	t.Run("fee larger than stable leg saturates", func(t *testing.T) {
		ex, err := StablecoinWithdrawalFee(
			fix.New[fix.N6](1_000_000_000),
			fix.New[fix.N6](100),
			fix.One[fix.N9](),
			fix.New[fix.N6](100_000_000),
			fix.New[fix.N9](2_000_000_000),
			fix.New[fix.N4](50),
		)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_001), ex.Fees.Bits())
		assert.True(t, ex.Remaining.IsZero())
	})
}
