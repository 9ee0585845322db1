// Package ledger holds the epoch-scoped running values the protocol keeps
// between transactions.
package ledger

import (
	"fmt"

	"github.com/hylo-so/hylo-engine/internal/fix"
)

// TotalSolCache tracks total collateral, valid only within the epoch it was
// last set in.
type TotalSolCache struct {
	Epoch uint64             `json:"current_update_epoch" yaml:"current_update_epoch"`
	Total fix.UFix64[fix.N9] `json:"total_sol" yaml:"total_sol"`
}

func NewTotalSolCache(epoch uint64) TotalSolCache {
	return TotalSolCache{Epoch: epoch}
}

// sameEpoch rejects older epochs as an ordering fault and newer ones as stale,
// since a new epoch must be opened with Set.
func (c *TotalSolCache) sameEpoch(epoch uint64) error {
	switch {
	case epoch < c.Epoch:
		return fmt.Errorf("%w: got %d, stored %d", ErrEpochOrder, epoch, c.Epoch)
	case epoch > c.Epoch:
		return fmt.Errorf("%w: got %d, stored %d", ErrCacheStale, epoch, c.Epoch)
	default:
		return nil
	}
}

func (c *TotalSolCache) Increment(amount fix.UFix64[fix.N9], epoch uint64) error {
	if err := c.sameEpoch(epoch); err != nil {
		return err
	}
	total, err := c.Total.CheckedAdd(amount)
	if err != nil {
		return ErrCacheOverflow
	}
	c.Total = total
	return nil
}

func (c *TotalSolCache) Decrement(amount fix.UFix64[fix.N9], epoch uint64) error {
	if err := c.sameEpoch(epoch); err != nil {
		return err
	}
	total, err := c.Total.CheckedSub(amount)
	if err != nil {
		return ErrCacheUnderflow
	}
	c.Total = total
	return nil
}

// Set overwrites the total, rolling the cache forward to epoch.
func (c *TotalSolCache) Set(total fix.UFix64[fix.N9], epoch uint64) error {
	if epoch < c.Epoch {
		return fmt.Errorf("%w: got %d, stored %d", ErrEpochOrder, epoch, c.Epoch)
	}
	c.Epoch = epoch
	c.Total = total
	return nil
}

// Validated returns the total only if it was set in the current epoch.
func (c TotalSolCache) Validated(epoch uint64) (fix.UFix64[fix.N9], error) {
	if epoch != c.Epoch {
		return fix.UFix64[fix.N9]{}, fmt.Errorf("%w: current %d, stored %d", ErrCacheStale, epoch, c.Epoch)
	}
	return c.Total, nil
}
