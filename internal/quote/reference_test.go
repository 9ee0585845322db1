package quote_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/quote"
)

// close enough: within 1bp or 10 raw units, whichever is larger.
func assertNear(t *testing.T, want, got uint64, field string) {
	t.Helper()
	diff := want - got
	if got > want {
		diff = got - want
	}
	tol := max(want/10_000, 10)
	assert.LessOrEqualf(t, diff, tol, "%s: engine %d, reference %d", field, want, got)
}

func TestReferenceAgreement(t *testing.T) {
	states := []struct {
		name   string
		mutate func(*quote.Snapshot)
	}{
		{name: "normal"},
		{name: "pool holds levercoin", mutate: func(s *quote.Snapshot) {
			s.Pool.Levercoin = fix.New[fix.N6](100_000_000_000)
		}},
		{name: "mode 1", mutate: func(s *quote.Snapshot) {
			s.Stablecoin = ledger.VirtualStablecoin{Supply: fix.New[fix.N6](10_500_000_000_000)}
		}},
	}
	amounts := []uint64{1_000_000, 250_000_000, 5_000_000_000}

	ctx := context.Background()
	for _, st := range states {
		s := sampleState(t, st.mutate)
		local := quote.NewLocalStrategy(quote.Static(s))
		ref := quote.NewReferenceStrategy(quote.Static(s))
		for _, pair := range quote.Pairs(true) {
			for _, amount := range amounts {
				t.Run(st.name+"/"+pair.String(), func(t *testing.T) {
					want, wantErr := local.Quote(ctx, pair, amount)
					got, gotErr := ref.Quote(ctx, pair, amount)
					if wantErr != nil {
						assert.Errorf(t, gotErr, "engine failed with %v", wantErr)
						return
					}
					require.NoError(t, gotErr)
					assert.Equal(t, want.InAmount, got.InAmount)
					assert.Equal(t, want.FeeMint, got.FeeMint)
					assertNear(t, want.OutAmount, got.OutAmount, "out")
					assertNear(t, want.FeeAmount, got.FeeAmount, "fee")
					assertNear(t, want.FeeBase, got.FeeBase, "fee base")
				})
			}
		}
	}
}

func TestStrategyCancelled(t *testing.T) {
	s := sampleState(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pair := quote.NewPair(quote.JITOSOL, quote.HYUSD)

	_, err := quote.NewLocalStrategy(quote.Static(s)).Quote(ctx, pair, 1)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = quote.NewReferenceStrategy(quote.Static(s)).Quote(ctx, pair, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
