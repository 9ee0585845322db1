package ledger

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
)

// YieldHarvestConfig splits harvested staking yield.
type YieldHarvestConfig struct {
	Allocation fix.UFix64[fix.N4] `json:"allocation" yaml:"allocation"`
	Fee        fix.UFix64[fix.N4] `json:"fee" yaml:"fee"`
}

func (c YieldHarvestConfig) Validate() error {
	one := fix.One[fix.N4]()
	if c.Fee.IsZero() || c.Fee.Gt(one) || c.Allocation.IsZero() || c.Allocation.Gt(one) {
		return fmt.Errorf("%w: allocation %s fee %s", ErrHarvestConfig, c.Allocation, c.Fee)
	}
	return nil
}

// ApplyAllocation returns the share of minted stablecoin routed to the pool.
func (c YieldHarvestConfig) ApplyAllocation(stablecoin fix.UFix64[fix.N6]) (fix.UFix64[fix.N6], error) {
	out, err := fix.MulDivFloor(stablecoin, c.Allocation, fix.One[fix.N4]())
	if err != nil {
		return fix.UFix64[fix.N6]{}, ErrHarvestAllocation
	}
	return out, nil
}

func (c YieldHarvestConfig) ApplyFee(stablecoin fix.UFix64[fix.N6]) (fees.Extract[fix.N6], error) {
	return fees.NewExtract(c.Fee, stablecoin)
}

// YieldHarvestCache records the last harvest.
type YieldHarvestCache struct {
	Epoch                 uint64             `json:"epoch" yaml:"epoch"`
	StabilityPoolCap      fix.UFix64[fix.N6] `json:"stability_pool_cap" yaml:"stability_pool_cap"`
	StablecoinYieldToPool fix.UFix64[fix.N6] `json:"stablecoin_yield_to_pool" yaml:"stablecoin_yield_to_pool"`
}

func (c *YieldHarvestCache) Init(epoch uint64) {
	*c = YieldHarvestCache{Epoch: epoch}
}

func (c *YieldHarvestCache) Update(poolCap, yieldToPool fix.UFix64[fix.N6], epoch uint64) error {
	if epoch < c.Epoch {
		return fmt.Errorf("%w: got %d, stored %d", ErrEpochOrder, epoch, c.Epoch)
	}
	c.Epoch = epoch
	c.StabilityPoolCap = poolCap
	c.StablecoinYieldToPool = yieldToPool
	return nil
}

// IsStale reports whether no harvest has happened in epoch.
func (c YieldHarvestCache) IsStale(epoch uint64) bool {
	return c.Epoch != epoch
}
