package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallClock(t *testing.T) {
	ref := time.Unix(1_700_000_000, 0)
	w := NewWall(ref, 1_000, 500)
	w.SlotsPerEpoch = 100

	w.Now = func() time.Time { return ref.Add(40 * time.Second) }
	assert.Equal(t, uint64(1_100), w.Slot())
	assert.Equal(t, uint64(501), w.Epoch())
	assert.Equal(t, int64(1_700_000_040), w.UnixTimestamp())

	w.Now = func() time.Time { return ref.Add(-time.Minute) }
	assert.Equal(t, uint64(1_000), w.Slot())
	assert.Equal(t, uint64(500), w.Epoch())
}

func TestSnapshot(t *testing.T) {
	f := Fixed{SlotValue: 7, EpochValue: 3, Unix: 99}
	assert.Equal(t, f, Snapshot(f))
}
