package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/store"
)

// Refresher reloads the protocol snapshot and renders its summary.
type Refresher interface {
	Refresh(ctx context.Context) (*quote.Snapshot, error)
	Summary(ctx context.Context) (*quote.Summary, error)
}

// SnapshotRefresher periodically reloads the protocol snapshot and publishes
// the resulting state to subscribers.
type SnapshotRefresher struct {
	protocol Refresher
	cache    *store.Cache
	interval time.Duration
	logger   *zap.SugaredLogger

	lastSlot uint64
}

func NewSnapshotRefresher(protocol Refresher, cache *store.Cache, interval time.Duration, logger *zap.SugaredLogger) *SnapshotRefresher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SnapshotRefresher{
		protocol: protocol,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Start refreshes once immediately and then on every interval until ctx
// ends.
func (r *SnapshotRefresher) Start(ctx context.Context) error {
	r.logger.Infow("Starting snapshot refresher", "interval", r.interval)
	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("Snapshot refresher stopping")
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one refresh and reports whether a new summary was
// published. An unchanged snapshot slot publishes nothing.
func (r *SnapshotRefresher) RunOnce(ctx context.Context) bool {
	snap, err := r.protocol.Refresh(ctx)
	if err != nil {
		r.logger.Warnw("Snapshot refresh failed", "error", err)
		return false
	}
	if snap.Clock.SlotValue == r.lastSlot {
		return false
	}

	sum, err := r.protocol.Summary(ctx)
	if err != nil {
		r.logger.Warnw("Failed to render protocol state", "slot", snap.Clock.SlotValue, "error", err)
		return false
	}
	r.lastSlot = snap.Clock.SlotValue

	if err := r.cache.Publish(ctx, store.ChannelProtocolState, sum); err != nil {
		r.logger.Warnw("Failed to publish protocol state", "error", err)
		return false
	}
	r.logger.Infow("Published protocol state",
		"slot", sum.Slot,
		"epoch", sum.Epoch,
		"mode", sum.Mode,
	)
	return true
}
