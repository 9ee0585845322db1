package prices

import (
	"sync"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/quote"
)

// Overlay holds the latest live SOL/USD tick and substitutes it for the
// snapshot's oracle feed when it is newer.
type Overlay struct {
	confBps int64

	mu     sync.RWMutex
	latest *Tick
}

func NewOverlay(confBps int64) *Overlay {
	return &Overlay{confBps: confBps}
}

// Update records t if it is newer than the current tick.
func (o *Overlay) Update(t Tick) bool {
	if !t.Price.IsPositive() {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.latest != nil && t.TsMs <= o.latest.TsMs {
		return false
	}
	o.latest = &t
	return true
}

func (o *Overlay) Latest() (Tick, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.latest == nil {
		return Tick{}, false
	}
	return *o.latest, true
}

// Apply returns snap with its SOL/USD feed replaced by the latest tick,
// posted at clk's current slot. snap is returned unchanged when no tick is
// newer than its own feed.
func (o *Overlay) Apply(snap *quote.Snapshot, clk clock.Clock) *quote.Snapshot {
	if o == nil || snap == nil {
		return snap
	}
	t, ok := o.Latest()
	if !ok || t.TsMs/1000 <= snap.SolUsd.PublishTime {
		return snap
	}
	feed, err := t.Feed(o.confBps, clk.Slot())
	if err != nil {
		return snap
	}
	out := *snap
	out.SolUsd = feed
	return &out
}
