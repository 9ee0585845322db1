package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hylo-so/hylo-engine/internal/onchain"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/snapshot"
	"github.com/hylo-so/hylo-engine/pkg/kv"
	"github.com/hylo-so/hylo-engine/pkg/kv/memory"
)

const testSnapshot = "../../internal/snapshot/testdata/snapshot.yaml"

// keepOpen lets the test read back what publish wrote after the command
// closes its store.
type keepOpen struct{ kv.Store }

func (keepOpen) Close() error { return nil }

func runApp(t *testing.T, opener StoreOpener, args ...string) (string, error) {
	t.Helper()
	if opener == nil {
		opener = func(string, string) (kv.Store, error) { return memory.New(0), nil }
	}
	var out bytes.Buffer
	err := newApp(&out, opener).Run(append([]string{"hyloctl"}, args...))
	return out.String(), err
}

func TestQuoteCommand(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, err := runApp(t, nil, "quote", "-s", testSnapshot, "JitoSOL", "hyUSD", "1.5")
		require.NoError(t, err)
		assert.Contains(t, out, "operation")
		assert.Contains(t, out, quote.MintStablecoin.String())
		assert.Contains(t, out, "1.5")
		assert.Contains(t, out, "slot")
	})

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, nil, "quote", "--json", "-s", testSnapshot, "JitoSOL", "hyUSD", "1.5")
		require.NoError(t, err)

		var q onchain.Quote
		require.NoError(t, json.Unmarshal([]byte(out), &q))
		assert.Equal(t, quote.MintStablecoin, q.Operation)
		assert.Equal(t, uint64(1000), q.Slot)
		assert.Equal(t, uint64(1_500_000_000), q.InAmount)
		assert.NotZero(t, q.OutAmount)
		assert.Equal(t, onchain.StrategyLocal, q.Strategy)
	})
}

func TestQuoteCommand_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "missing args", args: []string{"quote", "-s", testSnapshot, "JitoSOL"}},
		{name: "unknown token", args: []string{"quote", "-s", testSnapshot, "BTC", "hyUSD", "1"}},
		{name: "bad amount", args: []string{"quote", "-s", testSnapshot, "JitoSOL", "hyUSD", "abc"}},
		{name: "unsupported pair", args: []string{"quote", "-s", testSnapshot, "hyUSD", "hyUSD", "1"}},
		{name: "missing snapshot", args: []string{"quote", "-s", "testdata/none.yaml", "JitoSOL", "hyUSD", "1"}},
		{name: "unknown strategy", args: []string{"quote", "--strategy", "magic", "-s", testSnapshot, "JitoSOL", "hyUSD", "1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runApp(t, nil, tc.args...)
			assert.Error(t, err)
		})
	}
}

func TestStateCommand(t *testing.T) {
	out, err := runApp(t, nil, "state", "-s", testSnapshot)
	require.NoError(t, err)

	var summary quote.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, uint64(1000), summary.Slot)
}

func TestPairsCommand(t *testing.T) {
	out, err := runApp(t, nil, "pairs", "-s", testSnapshot)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.NotEmpty(t, lines)
	assert.Contains(t, string(lines[0]), "OPERATION")
	assert.Len(t, lines, len(quote.Pairs(true))+1)
	assert.Contains(t, out, "JitoSOL")
}

func TestCurvesCommand(t *testing.T) {
	out, err := runApp(t, nil, "curves", "--cr", "1.35")
	require.NoError(t, err)
	assert.Contains(t, out, "version")
	assert.Contains(t, out, "mint")
	assert.Contains(t, out, "redeem")
	assert.Contains(t, out, "at CR 1.35")

	_, err = runApp(t, nil, "curves", "--cr", "lots")
	assert.Error(t, err)

	_, err = runApp(t, nil, "curves", "--file", "testdata/none.toml")
	assert.Error(t, err)
}

func TestPublishCommand(t *testing.T) {
	store := memory.New(0)
	t.Cleanup(func() { store.Close() })

	var gotBackend string
	opener := func(backend, _ string) (kv.Store, error) {
		gotBackend = backend
		return keepOpen{store}, nil
	}

	out, err := runApp(t, opener, "publish", "-s", testSnapshot, "--backend", "memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", gotBackend)
	assert.Contains(t, out, "published slot 1000 epoch 500 to "+snapshot.KeyLatest)

	snap, err := snapshot.NewKVSource(store).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), snap.Clock.SlotValue)
	assert.Equal(t, uint64(500), snap.Clock.EpochValue)
}
