package oracle

import (
	"math"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/fix"
)

func validFeed() PriceFeed {
	return PriceFeed{
		Price:        14_640_110_937,
		Conf:         8_000_000,
		Exponent:     -8,
		PublishTime:  1_000,
		PostedSlot:   5_000,
		Verification: VerificationFull,
	}
}

func testConfig() Config {
	return Config{IntervalSecs: 60, ConfTolerance: fix.New[fix.N9](1_000_000)}
}

func TestQuery(t *testing.T) {
	now := clock.Fixed{SlotValue: 5_100, EpochValue: 10, Unix: 1_030}

	tests := []struct {
		name    string
		mutate  func(*PriceFeed)
		clock   clock.Fixed
		wantErr error
	}{
		{name: "valid", mutate: func(*PriceFeed) {}, clock: now},
		{name: "partial verification", mutate: func(f *PriceFeed) { f.Verification = VerificationPartial }, clock: now, wantErr: ErrVerificationLevel},
		{name: "zero publish time", mutate: func(f *PriceFeed) { f.PublishTime = 0 }, clock: now, wantErr: ErrNegativeTime},
		{name: "outdated", mutate: func(*PriceFeed) {}, clock: clock.Fixed{SlotValue: 5_100, Unix: 1_061}, wantErr: ErrOutdated},
		{name: "slot too old", mutate: func(*PriceFeed) {}, clock: clock.Fixed{SlotValue: 5_151, Unix: 1_030}, wantErr: ErrSlotInvalid},
		{name: "slot from future", mutate: func(f *PriceFeed) { f.PostedSlot = 6_000 }, clock: now, wantErr: ErrSlotInvalid},
		{name: "negative price", mutate: func(f *PriceFeed) { f.Price = -1 }, clock: now, wantErr: ErrNegativePrice},
		{name: "bad exponent", mutate: func(f *PriceFeed) { f.Exponent = -10 }, clock: now, wantErr: ErrExponent},
		{name: "wide confidence", mutate: func(f *PriceFeed) { f.Conf = 200_000_000 }, clock: now, wantErr: ErrConfidence},
		// verification is checked before time
		{name: "gate order", mutate: func(f *PriceFeed) { f.Verification = VerificationPartial; f.PublishTime = 0 }, clock: now, wantErr: ErrVerificationLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := validFeed()
			tt.mutate(&feed)
			price, err := Query(tt.clock, feed, testConfig())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(146_401_109_370), price.Spot.Bits())
			assert.Equal(t, uint64(80_000_000), price.Conf.Bits())
		})
	}
}

func TestQueryRange(t *testing.T) {
	now := clock.Fixed{SlotValue: 5_000, Unix: 1_000}
	r, err := QueryRange(now, validFeed(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, uint64(146_321_109_370), r.Lower.Bits())
	assert.Equal(t, uint64(146_481_109_370), r.Upper.Bits())

	n8, err := ConvertRange[fix.N8](r)
	require.NoError(t, err)
	assert.Equal(t, uint64(14_632_110_937), n8.Lower.Bits())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint64
		exp     int32
		want    uint64
		wantErr bool
	}{
		{name: "n8", raw: 14_640_110_937, exp: -8, want: 146_401_109_370},
		{name: "n9 passthrough", raw: math.MaxUint64, exp: -9, want: math.MaxUint64},
		{name: "n2", raw: 14_640, exp: -2, want: 146_400_000_000},
		{name: "zero", raw: 0, exp: -8, want: 0},
		{name: "n2 overflow", raw: math.MaxUint64/10_000_000 + 1, exp: -2, wantErr: true},
		{name: "exponent -1", raw: 100, exp: -1, wantErr: true},
		{name: "positive exponent", raw: 100, exp: 5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.exp)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExponent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Bits())
		})
	}
}

func TestPublishTime(t *testing.T) {
	assert.NoError(t, validatePublishTime(100, 60, 160))
	assert.ErrorIs(t, validatePublishTime(100, 60, 161), ErrOutdated)
	assert.NoError(t, validatePublishTime(100, 0, 100))
	assert.ErrorIs(t, validatePublishTime(-1, 120, 100), ErrNegativeTime)
	assert.ErrorIs(t, validatePublishTime(100, 30, -1), ErrNegativeTime)
	assert.NoError(t, validatePublishTime(math.MaxInt64, math.MaxUint64, 1))
}

func TestSlotInterval(t *testing.T) {
	assert.Equal(t, uint64(150), SlotInterval(60))
	assert.Equal(t, uint64(2), SlotInterval(1))
	assert.Equal(t, uint64(0), SlotInterval(0))
	assert.Equal(t, uint64(9_000), SlotInterval(3_600))

	assert.NoError(t, validatePostedSlot(1_000, 60, 1_150))
	assert.ErrorIs(t, validatePostedSlot(1_000, 60, 1_151), ErrSlotInvalid)
	assert.NoError(t, validatePostedSlot(500, 60, 500))
}

func TestConfidence(t *testing.T) {
	price := fix.New[fix.N9](1_000_000_000)
	assert.NoError(t, validateConf(price, fix.New[fix.N9](10_000_000), fix.New[fix.N9](10_000_000)))
	assert.NoError(t, validateConf(price, fix.Zero[fix.N9](), fix.New[fix.N9](1)))
	assert.ErrorIs(t, validateConf(price, fix.New[fix.N9](10_000_001), fix.New[fix.N9](10_000_000)), ErrConfidence)
}

func TestRangeFromConf(t *testing.T) {
	_, err := RangeFromConf(fix.New[fix.N9](5), fix.New[fix.N9](6))
	assert.ErrorIs(t, err, ErrPriceRange)

	_, err = RangeFromConf(fix.MaxUFix64[fix.N9](), fix.New[fix.N9](1))
	assert.ErrorIs(t, err, ErrPriceRange)

	r := SinglePrice(fix.New[fix.N8](42))
	assert.Equal(t, r.Lower, r.Upper)
}

func TestSwitchboard(t *testing.T) {
	scaled := func(mantissa string) decimal.Decimal {
		n, ok := new(big.Int).SetString(mantissa, 10)
		require.True(t, ok)
		return decimal.NewFromBigInt(n, -18)
	}

	tests := []struct {
		name    string
		quote   SwitchboardQuote
		slot    uint64
		want    uint64
		wantErr error
	}{
		{name: "exact", quote: SwitchboardQuote{Slot: 100, Values: []decimal.Decimal{scaled("146401109370000000000")}}, slot: 200, want: 14_640_110_937},
		{name: "truncates", quote: SwitchboardQuote{Slot: 100, Values: []decimal.Decimal{scaled("1464011093700000000")}}, slot: 100, want: 146_401_109},
		{name: "slot ahead of clock", quote: SwitchboardQuote{Slot: 500, Values: []decimal.Decimal{scaled("100500000000000000000")}}, slot: 100, want: 10_050_000_000},
		{name: "stale", quote: SwitchboardQuote{Slot: 100, Values: []decimal.Decimal{scaled("1")}}, slot: 401, wantErr: ErrSwitchboardStale},
		{name: "empty", quote: SwitchboardQuote{Slot: 100}, slot: 100, wantErr: ErrSwitchboardInvalid},
		{name: "negative", quote: SwitchboardQuote{Slot: 100, Values: []decimal.Decimal{decimal.NewFromInt(-1)}}, slot: 100, wantErr: ErrSwitchboardInvalid},
		{name: "too large", quote: SwitchboardQuote{Slot: 100, Values: []decimal.Decimal{decimal.New(1, 20)}}, slot: 100, wantErr: ErrSwitchboardRange},
	}

	cfg := Config{IntervalSecs: 60}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := QuerySwitchboard[fix.N8](clock.Fixed{SlotValue: tt.slot}, tt.quote, cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Lower.Bits())
			assert.Equal(t, tt.want, r.Upper.Bits())
		})
	}
}
