package prices

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// FeedSolUsd is the oracle feed every LST quote prices through.
const FeedSolUsd = "SOL/USD"

// Registry maps oracle feeds to provider symbols
type Registry struct {
	mappings map[string]string // feed -> provider symbol
}

// NewRegistry creates a registry with the default feed mappings.
func NewRegistry() *Registry {
	r := &Registry{
		mappings: make(map[string]string),
	}

	r.AddMapping(FeedSolUsd, "SOLUSDT")
	r.AddMapping("BTC/USD", "BTCUSDT")

	return r
}

func (r *Registry) AddMapping(feed, providerSymbol string) {
	r.mappings[strings.ToUpper(feed)] = strings.ToUpper(providerSymbol)
}

// ProviderSymbol returns the provider symbol for a feed
func (r *Registry) ProviderSymbol(feed string) (string, error) {
	symbol, exists := r.mappings[strings.ToUpper(feed)]
	if !exists {
		return "", fmt.Errorf("no mapping found for feed: %s", feed)
	}
	return symbol, nil
}

// ProviderSymbols returns the unique provider symbols, sorted.
func (r *Registry) ProviderSymbols() []string {
	symbols := lo.Uniq(lo.Values(r.mappings))
	slices.Sort(symbols)
	return symbols
}
