package onchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hylo-so/hylo-engine/internal/clock"
	"github.com/hylo-so/hylo-engine/internal/config"
	"github.com/hylo-so/hylo-engine/internal/fees"
	"github.com/hylo-so/hylo-engine/internal/fix"
	"github.com/hylo-so/hylo-engine/internal/ledger"
	"github.com/hylo-so/hylo-engine/internal/metrics"
	"github.com/hylo-so/hylo-engine/internal/oracle"
	"github.com/hylo-so/hylo-engine/internal/prices"
	"github.com/hylo-so/hylo-engine/internal/quote"
	"github.com/hylo-so/hylo-engine/internal/snapshot"
	"github.com/hylo-so/hylo-engine/internal/stability"
	"github.com/hylo-so/hylo-engine/internal/store"
)

// Options controls how loaded snapshots are turned into quotable state.
type Options struct {
	// Floor replaces the snapshot's depeg floor when non-zero.
	Floor     fix.UFix64[fix.N2]
	Engine    quote.Options
	LiveClock bool
	StateTTL  time.Duration
}

// OptionsFromConfig parses the engine settings, reading the fee curve file
// when one is configured.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	floor, err := cfg.Engine.Floor()
	if err != nil {
		return Options{}, fmt.Errorf("stability floor: %w", err)
	}
	delta, err := cfg.Engine.MaxDelta()
	if err != nil {
		return Options{}, fmt.Errorf("max lst price delta: %w", err)
	}
	opts := Options{
		Floor: floor,
		Engine: quote.Options{
			MaxLstPriceDelta: delta,
			LstPriceMaxAge:   cfg.Engine.LstPriceMaxAge,
		},
		LiveClock: cfg.Engine.LiveClock,
		StateTTL:  cfg.Cache.StateTTL,
	}
	if path := cfg.Engine.CurvesFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Options{}, fmt.Errorf("read fee curves: %w", err)
		}
		curves, err := fees.ParseCurves(data)
		if err != nil {
			return Options{}, fmt.Errorf("parse fee curves %s: %w", path, err)
		}
		opts.Engine.Curves = curves
	}
	return opts, nil
}

// ProtocolService owns the current protocol snapshot. It reloads it from a
// snapshot.Source, overlays live prices and serves validated quote.State
// values and cached summaries.
type ProtocolService struct {
	source  snapshot.Source
	overlay *prices.Overlay
	cache   *store.Cache
	opts    Options
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	sf      singleflight.Group
	now     func() time.Time

	mu       sync.RWMutex
	snap     *quote.Snapshot
	loadedAt time.Time
	lastErr  error
}

type ProtocolHealth struct {
	Ready    bool           `json:"ready"`
	Source   string         `json:"source"`
	Mode     stability.Mode `json:"stability_mode"`
	LoadedAt time.Time      `json:"loaded_at"`
	Reasons  []string       `json:"reasons"`
}

// PairInfo describes a quotable pair and whether the current stability
// mode admits it.
type PairInfo struct {
	quote.Pair
	Operation quote.Operation `json:"operation"`
	Enabled   bool            `json:"enabled"`
}

func NewProtocolService(
	source snapshot.Source,
	overlay *prices.Overlay,
	cache *store.Cache,
	opts Options,
	logger *zap.SugaredLogger,
	m *metrics.Metrics,
) *ProtocolService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ProtocolService{
		source:  source,
		overlay: overlay,
		cache:   cache,
		opts:    opts,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

func (s *ProtocolService) SourceName() string { return s.source.Name() }

// Refresh loads a new snapshot. A snapshot that does not yield a valid state
// is rejected and the previous one stays current.
func (s *ProtocolService) Refresh(ctx context.Context) (*quote.Snapshot, error) {
	v, err, _ := s.sf.Do("refresh", func() (any, error) {
		snap, err := s.load(ctx)
		s.metrics.RecordSnapshotRefresh(ctx, s.source.Name(), err)

		s.mu.Lock()
		if err != nil {
			s.lastErr = err
			s.mu.Unlock()
			return nil, err
		}
		s.snap = snap
		s.loadedAt = s.now()
		s.lastErr = nil
		s.mu.Unlock()

		s.Invalidate(ctx)
		s.logger.Debugw("Protocol snapshot refreshed",
			"source", s.source.Name(),
			"slot", snap.Clock.SlotValue,
			"epoch", snap.Clock.EpochValue,
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*quote.Snapshot), nil
}

func (s *ProtocolService) load(ctx context.Context) (*quote.Snapshot, error) {
	snap, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot from %s: %w", s.source.Name(), err)
	}
	snap = s.prepare(snap)
	if _, err := s.build(snap); err != nil {
		return nil, fmt.Errorf("reject snapshot: %w", err)
	}
	return snap, nil
}

func (s *ProtocolService) prepare(snap *quote.Snapshot) *quote.Snapshot {
	if s.opts.Floor.IsZero() {
		return snap
	}
	out := *snap
	out.Config.Floor = s.opts.Floor
	return &out
}

func (s *ProtocolService) clockFor(snap *quote.Snapshot) clock.Clock {
	if !s.opts.LiveClock {
		return snap.Clock
	}
	w := clock.NewWall(time.Unix(snap.Clock.Unix, 0), snap.Clock.SlotValue, snap.Clock.EpochValue)
	w.Now = s.now
	return w
}

func (s *ProtocolService) build(snap *quote.Snapshot) (*quote.State, error) {
	clk := s.clockFor(snap)
	return quote.NewState(s.overlay.Apply(snap, clk), clk, s.opts.Engine)
}

// Snapshot returns the current snapshot and when it was loaded, or nil
// before the first successful refresh.
func (s *ProtocolService) Snapshot() (*quote.Snapshot, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.loadedAt
}

func (s *ProtocolService) current(ctx context.Context) (*quote.Snapshot, error) {
	if snap, _ := s.Snapshot(); snap != nil {
		return snap, nil
	}
	snap, err := s.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

// State builds the quotable state from the current snapshot with the latest
// live price applied.
func (s *ProtocolService) State(ctx context.Context) (*quote.State, error) {
	snap, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.build(snap)
}

// Summary returns the rendered protocol state, served from the cache while
// it is fresh.
func (s *ProtocolService) Summary(ctx context.Context) (*quote.Summary, error) {
	v, err, _ := s.sf.Do("summary", func() (any, error) {
		var cached quote.Summary
		if err := s.cache.GetProtocolState(ctx, &cached); err == nil {
			return &cached, nil
		}

		st, err := s.State(ctx)
		if err != nil {
			return nil, err
		}
		sum, err := st.Summary()
		if err != nil {
			return nil, fmt.Errorf("render protocol state: %w", err)
		}
		if err := s.cache.SetProtocolState(ctx, &sum, s.opts.StateTTL); err != nil {
			s.logger.Warnw("Failed to cache protocol state", "error", err)
		}
		return &sum, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*quote.Summary), nil
}

// Invalidate drops the cached summary so the next read renders a new one.
func (s *ProtocolService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, store.KeyProtocolState); err != nil {
		s.logger.Warnw("Failed to invalidate protocol state", "error", err)
	}
}

// Pairs lists every pair the current snapshot can quote, flagging those the
// current stability mode disables.
func (s *ProtocolService) Pairs(ctx context.Context) ([]PairInfo, error) {
	st, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	exoMode := stability.Depeg
	exo, err := st.Exo()
	if err == nil {
		exoMode = exo.Mode()
	}
	mode := st.Lst().Mode()

	pairs := quote.Pairs(exo != nil)
	out := make([]PairInfo, 0, len(pairs))
	for _, p := range pairs {
		op, err := p.Operation()
		if err != nil {
			continue
		}
		m := mode
		if op.Exo() {
			m = exoMode
		}
		out = append(out, PairInfo{Pair: p, Operation: op, Enabled: op.AllowedIn(m)})
	}
	return out, nil
}

func (s *ProtocolService) Health(ctx context.Context) *ProtocolHealth {
	s.mu.RLock()
	snap, loadedAt, lastErr := s.snap, s.loadedAt, s.lastErr
	s.mu.RUnlock()

	h := &ProtocolHealth{Source: s.source.Name(), LoadedAt: loadedAt}
	if lastErr != nil {
		h.Reasons = append(h.Reasons, "SNAPSHOT_REFRESH_FAILED")
	}
	if snap == nil {
		h.Reasons = append(h.Reasons, "SNAPSHOT_MISSING")
		return h
	}

	st, err := s.build(snap)
	if err != nil {
		h.Reasons = append(h.Reasons, stateReason(err))
		return h
	}
	h.Ready = true
	h.Mode = st.Lst().Mode()
	if h.Mode != stability.Normal {
		h.Reasons = append(h.Reasons, "MODE_"+strings.ToUpper(h.Mode.String()))
	}
	if exo, err := st.Exo(); err == nil && exo.Mode() != stability.Normal {
		h.Reasons = append(h.Reasons, "EXO_MODE_"+strings.ToUpper(exo.Mode().String()))
	}
	if cfg := snap.Config; cfg.Harvest != nil && cfg.HarvestCache != nil && cfg.HarvestCache.IsStale(st.Clock().Epoch()) {
		h.Reasons = append(h.Reasons, "HARVEST_PENDING")
	}
	return h
}

func stateReason(err error) string {
	switch {
	case errors.Is(err, oracle.ErrOutdated), errors.Is(err, oracle.ErrSlotInvalid),
		errors.Is(err, oracle.ErrSwitchboardStale):
		return "ORACLE_STALE"
	case errors.Is(err, oracle.ErrConfidence):
		return "ORACLE_UNCERTAIN"
	case errors.Is(err, ledger.ErrCacheStale), errors.Is(err, ledger.ErrPriceStale):
		return "EPOCH_CACHE_STALE"
	default:
		return "STATE_INVALID"
	}
}
