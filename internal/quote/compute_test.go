package quote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/calc"
	"github.com/hylo-so/hylo-engine/internal/exchange"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/quote/quotetest"
	"github.com/hylo-so/hylo-engine/internal/stability"
)

func sampleState(t *testing.T, mutate func(*quote.Snapshot)) *quote.State {
	t.Helper()
	snap := quotetest.Snapshot()
	if mutate != nil {
		mutate(snap)
	}
	s, err := quotetest.State(snap)
	require.NoError(t, err)
	return s
}

func TestCompute(t *testing.T) {
	withPoolLevercoin := func(s *quote.Snapshot) {
		s.Pool.Levercoin = fix.New[fix.N6](100_000_000_000)
	}
	tests := []struct {
		name   string
		mutate func(*quote.Snapshot)
		pair   quote.Pair
		amount uint64
		want   quote.OperationOutput
	}{
		{
			name:   "mint stablecoin with 10 JitoSOL",
			pair:   quote.NewPair(quote.JITOSOL, quote.HYUSD),
			amount: 10_000_000_000,
			want:   quote.OperationOutput{InAmount: 10_000_000_000, OutAmount: 1_649_604_023, FeeAmount: 1_400_000, FeeMint: quote.JITOSOL, FeeBase: 10_000_000_000},
		},
		{
			name:   "redeem 1000 hyUSD for JitoSOL",
			pair:   quote.NewPair(quote.HYUSD, quote.JITOSOL),
			amount: 1_000_000_000,
			want:   quote.OperationOutput{InAmount: 1_000_000_000, OutAmount: 6_046_001_459, FeeAmount: 13_998_601, FeeMint: quote.JITOSOL, FeeBase: 6_060_000_060},
		},
		{
			name:   "mint levercoin with 10 JitoSOL",
			pair:   quote.NewPair(quote.JITOSOL, quote.XSOL),
			amount: 10_000_000_000,
			want:   quote.OperationOutput{InAmount: 10_000_000_000, OutAmount: 548_707_933, FeeAmount: 20_000_000, FeeMint: quote.JITOSOL, FeeBase: 10_000_000_000},
		},
		{
			name:   "redeem 100 xSOL for JitoSOL",
			pair:   quote.NewPair(quote.XSOL, quote.JITOSOL),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 1_812_092_880, FeeAmount: 5_452_637, FeeMint: quote.JITOSOL, FeeBase: 1_817_545_517},
		},
		{
			name:   "swap 1000 hyUSD to xSOL",
			pair:   quote.NewPair(quote.HYUSD, quote.XSOL),
			amount: 1_000_000_000,
			want:   quote.OperationOutput{InAmount: 1_000_000_000, OutAmount: 332_583_520, FeeAmount: 2_000_000, FeeMint: quote.HYUSD, FeeBase: 1_000_000_000},
		},
		{
			name:   "swap 100 xSOL to hyUSD",
			pair:   quote.NewPair(quote.XSOL, quote.HYUSD),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 299_025_225, FeeAmount: 899_775, FeeMint: quote.HYUSD, FeeBase: 299_925_000},
		},
		{
			name:   "swap 10 JitoSOL to hyloSOL",
			pair:   quote.NewPair(quote.JITOSOL, quote.HYLOSOL),
			amount: 10_000_000_000,
			want:   quote.OperationOutput{InAmount: 10_000_000_000, OutAmount: 10_465_714_285, FeeAmount: 10_476_191, FeeMint: quote.HYLOSOL, FeeBase: 10_476_190_476},
		},
		{
			name:   "deposit 1000 hyUSD",
			pair:   quote.NewPair(quote.HYUSD, quote.SHYUSD),
			amount: 1_000_000_000,
			want:   quote.OperationOutput{InAmount: 1_000_000_000, OutAmount: 952_380_952, FeeMint: quote.HYUSD, FeeBase: 1_000_000_000},
		},
		{
			name:   "withdraw 100 shyUSD",
			pair:   quote.NewPair(quote.SHYUSD, quote.HYUSD),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 104_895_000, FeeAmount: 105_000, FeeMint: quote.HYUSD, FeeBase: 105_000_000},
		},
		{
			name:   "withdraw and redeem 100 shyUSD with levercoin in pool",
			mutate: withPoolLevercoin,
			pair:   quote.NewPair(quote.SHYUSD, quote.JITOSOL),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 815_223_179, FeeAmount: 2_013_228, FeeMint: quote.JITOSOL, FeeBase: 817_236_407},
		},
		{
			name:   "exo mint stablecoin above the mint curve",
			pair:   quote.NewPair(quote.WBTC, quote.HYUSD),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 6_000_050_000, FeeAmount: 0, FeeMint: quote.WBTC, FeeBase: 100_000_000},
		},
		{
			name:   "exo redeem 1000 hyUSD",
			pair:   quote.NewPair(quote.HYUSD, quote.WBTC),
			amount: 1_000_000_000,
			want:   quote.OperationOutput{InAmount: 1_000_000_000, OutAmount: 16_623_027, FeeAmount: 43_500, FeeMint: quote.WBTC, FeeBase: 16_666_527},
		},
		{
			name:   "exo mint levercoin",
			pair:   quote.NewPair(quote.WBTC, quote.XBTC),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 1_995_983_366, FeeAmount: 200_000, FeeMint: quote.WBTC, FeeBase: 100_000_000},
		},
		{
			name:   "exo redeem levercoin",
			pair:   quote.NewPair(quote.XBTC, quote.WBTC),
			amount: 100_000_000,
			want:   quote.OperationOutput{InAmount: 100_000_000, OutAmount: 4_985_040, FeeAmount: 15_001, FeeMint: quote.WBTC, FeeBase: 5_000_041},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleState(t, tt.mutate)
			got, err := s.Compute(tt.pair, tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeRejects(t *testing.T) {
	depeg := func(s *quote.Snapshot) {
		// 100k SOL at ~$150 against 16M hyUSD is a CR of about 0.94
		s.Stablecoin = ledger.VirtualStablecoin{Supply: fix.New[fix.N6](16_000_000_000_000)}
	}
	mode2 := func(s *quote.Snapshot) {
		s.Stablecoin = ledger.VirtualStablecoin{Supply: fix.New[fix.N6](12_000_000_000_000)}
	}
	tests := []struct {
		name    string
		mutate  func(*quote.Snapshot)
		pair    quote.Pair
		amount  uint64
		wantErr error
	}{
		{name: "zero amount", pair: quote.NewPair(quote.JITOSOL, quote.HYUSD), wantErr: quote.ErrZeroAmount},
		{name: "unsupported pair", pair: quote.NewPair(quote.SHYUSD, quote.XSOL), amount: 1, wantErr: quote.ErrUnsupportedPair},
		{name: "stablecoin mint in mode 2", mutate: mode2, pair: quote.NewPair(quote.JITOSOL, quote.HYUSD), amount: 1_000_000_000, wantErr: quote.ErrOperationDisabled},
		{name: "lever to stable in mode 2", mutate: mode2, pair: quote.NewPair(quote.XSOL, quote.HYUSD), amount: 1_000_000, wantErr: quote.ErrOperationDisabled},
		{name: "levercoin mint in depeg", mutate: depeg, pair: quote.NewPair(quote.JITOSOL, quote.XSOL), amount: 1_000_000_000, wantErr: quote.ErrOperationDisabled},
		{name: "pool deposit in depeg", mutate: depeg, pair: quote.NewPair(quote.HYUSD, quote.SHYUSD), amount: 1_000_000, wantErr: quote.ErrOperationDisabled},
		{
			name:    "withdraw with levercoin in pool",
			mutate:  func(s *quote.Snapshot) { s.Pool.Levercoin = fix.New[fix.N6](1) },
			pair:    quote.NewPair(quote.SHYUSD, quote.HYUSD),
			amount:  1_000_000,
			wantErr: quote.ErrLevercoinInPool,
		},
		{name: "withdraw more than lp supply", pair: quote.NewPair(quote.SHYUSD, quote.HYUSD), amount: 1_000_000_000_001, wantErr: calc.ErrTokenWithdraw},
		{name: "mint pushing cr below the mint curve", pair: quote.NewPair(quote.JITOSOL, quote.HYUSD), amount: 100_000_000_000_000, wantErr: fees.ErrNoStablecoinMintFee},
		{name: "swap beyond max swappable", pair: quote.NewPair(quote.XSOL, quote.HYUSD), amount: 1_000_000_000_000, wantErr: exchange.ErrStablecoinOverMax},
		{
			name:    "lst without header",
			mutate:  func(s *quote.Snapshot) { delete(s.Lsts, quote.HYLOSOL.Symbol) },
			pair:    quote.NewPair(quote.HYUSD, quote.HYLOSOL),
			amount:  1_000_000,
			wantErr: quote.ErrUnknownLst,
		},
		{
			name:    "lst swap without fee",
			mutate:  func(s *quote.Snapshot) { s.Config.LstSwap.Fee = fix.Zero[fix.N4]() },
			pair:    quote.NewPair(quote.JITOSOL, quote.HYLOSOL),
			amount:  1_000_000,
			wantErr: quote.ErrOperationDisabled,
		},
		{
			name:    "exo pair missing",
			mutate:  func(s *quote.Snapshot) { s.Exo = nil },
			pair:    quote.NewPair(quote.WBTC, quote.HYUSD),
			amount:  1_000_000,
			wantErr: quote.ErrNoExoPair,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleState(t, tt.mutate)
			_, err := s.Compute(tt.pair, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestComputeModes(t *testing.T) {
	depeg := sampleState(t, func(s *quote.Snapshot) {
		s.Stablecoin = ledger.VirtualStablecoin{Supply: fix.New[fix.N6](16_000_000_000_000)}
	})
	assert.Equal(t, stability.Depeg, depeg.Lst().Mode())

	// redemptions stay open in depeg and are priced below par
	out, err := depeg.Compute(quote.NewPair(quote.HYUSD, quote.JITOSOL), 1_000_000_000)
	require.NoError(t, err)
	assert.Less(t, out.FeeBase, uint64(6_060_000_060))

	_, err = depeg.Compute(quote.NewPair(quote.SHYUSD, quote.HYUSD), 1_000_000)
	assert.NoError(t, err)

	// deposits close in depeg but are still taken in mode 2
	_, err = depeg.Compute(quote.NewPair(quote.HYUSD, quote.SHYUSD), 1_000_000)
	assert.ErrorIs(t, err, quote.ErrOperationDisabled)

	mode2 := sampleState(t, func(s *quote.Snapshot) {
		s.Stablecoin = ledger.VirtualStablecoin{Supply: fix.New[fix.N6](12_000_000_000_000)}
	})
	assert.Equal(t, stability.Mode2, mode2.Lst().Mode())
	out, err = mode2.Compute(quote.NewPair(quote.HYUSD, quote.SHYUSD), 1_000_000)
	require.NoError(t, err)
	assert.NotZero(t, out.OutAmount)
}
