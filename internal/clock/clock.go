// Package clock provides the slot, epoch and timestamp view used to validate
// oracle feeds and epoch-scoped caches.
package clock

import "time"

// Clock is a read-only view of chain time.
type Clock interface {
	Slot() uint64
	Epoch() uint64
	UnixTimestamp() int64
}

// Fixed is a Clock frozen at the given values.
type Fixed struct {
	SlotValue  uint64 `json:"slot" yaml:"slot"`
	EpochValue uint64 `json:"epoch" yaml:"epoch"`
	Unix       int64  `json:"unix_timestamp" yaml:"unix_timestamp"`
}

func (f Fixed) Slot() uint64         { return f.SlotValue }
func (f Fixed) Epoch() uint64        { return f.EpochValue }
func (f Fixed) UnixTimestamp() int64 { return f.Unix }

const (
	SlotDuration         = 400 * time.Millisecond
	DefaultSlotsPerEpoch = 432_000
)

// Wall derives chain time from the local wall clock relative to a known
// reference point.
type Wall struct {
	RefTime       time.Time
	RefSlot       uint64
	RefEpoch      uint64
	SlotsPerEpoch uint64
	Now           func() time.Time
}

func NewWall(refTime time.Time, refSlot, refEpoch uint64) *Wall {
	return &Wall{
		RefTime:       refTime,
		RefSlot:       refSlot,
		RefEpoch:      refEpoch,
		SlotsPerEpoch: DefaultSlotsPerEpoch,
		Now:           time.Now,
	}
}

func (w *Wall) elapsedSlots() uint64 {
	d := w.Now().Sub(w.RefTime)
	if d <= 0 {
		return 0
	}
	return uint64(d / SlotDuration)
}

func (w *Wall) Slot() uint64 {
	return w.RefSlot + w.elapsedSlots()
}

func (w *Wall) Epoch() uint64 {
	if w.SlotsPerEpoch == 0 {
		return w.RefEpoch
	}
	return w.RefEpoch + w.elapsedSlots()/w.SlotsPerEpoch
}

func (w *Wall) UnixTimestamp() int64 {
	return w.Now().Unix()
}

// Snapshot freezes the current values of any Clock.
func Snapshot(c Clock) Fixed {
	return Fixed{SlotValue: c.Slot(), EpochValue: c.Epoch(), Unix: c.UnixTimestamp()}
}
