package kv

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// LogFunc is a function type for structured logging
type LogFunc func(msg string, fields ...any)

// FailoverStore serves snapshots and quotes from redis and keeps the quote
// service answering from an in-memory store while redis is unreachable.
//
// Writes accepted by the fallback are tracked. On recovery they are replayed
// onto redis before traffic moves back, so a quote id handed out during the
// outage still resolves afterwards and the latest snapshot is not rolled back.
type FailoverStore struct {
	primary       Store
	fallback      Store
	active        atomic.Value // Store
	checkInterval time.Duration
	logger        LogFunc
	now           func() time.Time
	failovers     atomic.Int64

	mu        sync.Mutex
	outage    *outage
	checking  bool
	checkDone chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewFailoverStore creates a failover store with the primary active.
func NewFailoverStore(primary, fallback Store, checkInterval time.Duration, logger LogFunc) *FailoverStore {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}

	fs := &FailoverStore{
		primary:       primary,
		fallback:      fallback,
		checkInterval: checkInterval,
		logger:        logger,
		now:           time.Now,
		closed:        make(chan struct{}),
	}
	fs.active.Store(primary)
	return fs
}

// NewFailoverStoreWithFallbackActive starts on the fallback and pings the
// primary until it recovers. Used when the primary fails its startup ping.
func NewFailoverStoreWithFallbackActive(primary, fallback Store, checkInterval time.Duration, logger LogFunc) *FailoverStore {
	fs := NewFailoverStore(primary, fallback, checkInterval, logger)
	fs.active.Store(fallback)

	fs.mu.Lock()
	fs.outage = newOutage(fs.now(), "startup", "")
	fs.startCheckingLocked()
	fs.mu.Unlock()
	return fs
}

// pending is the set of fallback writes redis has not seen yet.
type pending struct {
	written  map[string]struct{}
	deleted  map[string]struct{}
	counters map[string]int64
}

func newPending() pending {
	return pending{
		written:  make(map[string]struct{}),
		deleted:  make(map[string]struct{}),
		counters: make(map[string]int64),
	}
}

func (p pending) len() int {
	return len(p.written) + len(p.deleted) + len(p.counters)
}

func (p pending) set(key string) {
	p.written[key] = struct{}{}
	delete(p.deleted, key)
	delete(p.counters, key)
}

func (p pending) del(key string) {
	p.deleted[key] = struct{}{}
	delete(p.written, key)
	delete(p.counters, key)
}

// incr is replayed as a delta so counters bumped on redis before the outage
// are not overwritten. A key already rewritten whole carries the count in
// its value.
func (p pending) incr(key string, n int64) {
	if _, ok := p.written[key]; ok {
		return
	}
	delete(p.deleted, key)
	p.counters[key] += n
}

// mergeOlder folds a batch that failed to replay back under the writes that
// arrived since. Newer operations on a key win.
func (p pending) mergeOlder(old pending) {
	touched := func(key string) bool {
		_, w := p.written[key]
		_, d := p.deleted[key]
		return w || d
	}
	for key := range old.written {
		if !touched(key) {
			p.written[key] = struct{}{}
			delete(p.counters, key)
		}
	}
	for key := range old.deleted {
		if _, c := p.counters[key]; !touched(key) && !c {
			p.deleted[key] = struct{}{}
		}
	}
	for key, n := range old.counters {
		if !touched(key) {
			p.counters[key] += n
		}
	}
}

type outage struct {
	since   time.Time
	op      string
	key     string
	pending pending
}

func newOutage(since time.Time, op, key string) *outage {
	return &outage{since: since, op: op, key: key, pending: newPending()}
}

func (fs *FailoverStore) current() Store {
	return fs.active.Load().(Store)
}

func (fs *FailoverStore) demoteToFallback(op, key string, cause error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.current() == fs.fallback {
		return
	}

	fs.active.Store(fs.fallback)
	fs.outage = newOutage(fs.now(), op, key)
	fs.logger("Failing over to in-memory store",
		"op", op,
		"key", key,
		"error", cause.Error(),
		"failovers", fs.failovers.Add(1),
	)
	fs.startCheckingLocked()
}

func (fs *FailoverStore) startCheckingLocked() {
	if fs.checking {
		return
	}
	fs.checking = true
	done := make(chan struct{})
	fs.checkDone = done
	go fs.checkLoop(done)
}

func (fs *FailoverStore) checkLoop(done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(fs.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-fs.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), fs.checkInterval/2)
			err := fs.primary.Ping(ctx)
			cancel()
			if err != nil {
				continue
			}
			if fs.tryRecover() {
				return
			}
		}
	}
}

// maxReplayRounds bounds how often tryRecover chases writes that land on the
// fallback while it replays.
const maxReplayRounds = 3

// tryRecover replays the outage's writes onto the primary and switches back.
// It reports false and stays on the fallback if the primary fails mid
// replay.
func (fs *FailoverStore) tryRecover() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*fs.checkInterval)
	defer cancel()

	replayed := 0
	for round := 0; ; round++ {
		fs.mu.Lock()
		o := fs.outage
		if o == nil {
			fs.checking = false
			fs.mu.Unlock()
			return true
		}
		batch := o.pending
		if batch.len() == 0 || round == maxReplayRounds {
			fs.active.Store(fs.primary)
			fs.outage = nil
			fs.checking = false
			fs.mu.Unlock()

			fs.logger("Recovered to primary store",
				"trigger_op", o.op,
				"trigger_key", o.key,
				"outage", fs.now().Sub(o.since),
				"replayed", replayed,
				"unreplayed", batch.len(),
			)
			return true
		}
		o.pending = newPending()
		fs.mu.Unlock()

		n, err := fs.replay(ctx, batch)
		replayed += n
		if err != nil {
			fs.mu.Lock()
			fs.outage.pending.mergeOlder(batch)
			fs.mu.Unlock()
			fs.logger("Replay to primary store failed; staying on in-memory store",
				"replayed", replayed,
				"pending", batch.len(),
				"error", err.Error(),
			)
			return false
		}
	}
}

// replay copies batch from the fallback onto the primary. Values keep their
// remaining TTL so cached quotes still expire on schedule.
func (fs *FailoverStore) replay(ctx context.Context, batch pending) (int, error) {
	n := 0
	for key := range batch.written {
		value, err := fs.fallback.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			delete(batch.written, key) // expired during the outage
			continue
		}
		if err != nil {
			return n, err
		}
		ttl, err := fs.fallback.TTL(ctx, key)
		if errors.Is(err, ErrNotFound) {
			delete(batch.written, key)
			continue
		}
		if err != nil {
			return n, err
		}
		if ttl > 0 {
			err = fs.primary.Set(ctx, key, value, ttl)
		} else {
			err = fs.primary.Set(ctx, key, value)
		}
		if err != nil {
			return n, err
		}
		delete(batch.written, key)
		n++
	}

	if len(batch.deleted) > 0 {
		keys := make([]string, 0, len(batch.deleted))
		for key := range batch.deleted {
			keys = append(keys, key)
		}
		if _, err := fs.primary.Del(ctx, keys...); err != nil {
			return n, err
		}
		clear(batch.deleted)
		n += len(keys)
	}

	for key, delta := range batch.counters {
		if _, err := fs.primary.IncrBy(ctx, key, delta); err != nil {
			return n, err
		}
		delete(batch.counters, key)
		n++
	}
	return n, nil
}

// do runs fn on the active store, retrying once on the fallback when the
// primary reports ErrBackendUnavailable. Successful fallback writes are
// handed to track.
func do[T any](fs *FailoverStore, op, key string, fn func(Store) (T, error), track func(pending)) (T, error) {
	store := fs.current()
	result, err := fn(store)

	if store == fs.primary && errors.Is(err, ErrBackendUnavailable) {
		fs.demoteToFallback(op, key, err)
		store = fs.current()
		if store == fs.primary {
			return result, err
		}
		result, err = fn(store)
	}

	if err == nil && track != nil && store == fs.fallback {
		fs.mu.Lock()
		if fs.outage != nil {
			track(fs.outage.pending)
		}
		fs.mu.Unlock()
	}
	return result, err
}

func firstKey(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func (fs *FailoverStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	_, err := do(fs, "set", key, func(s Store) (struct{}, error) {
		return struct{}{}, s.Set(ctx, key, value, ttl...)
	}, func(p pending) { p.set(key) })
	return err
}

func (fs *FailoverStore) Get(ctx context.Context, key string) ([]byte, error) {
	return do(fs, "get", key, func(s Store) ([]byte, error) {
		return s.Get(ctx, key)
	}, nil)
}

func (fs *FailoverStore) Del(ctx context.Context, keys ...string) (int64, error) {
	return do(fs, "del", firstKey(keys), func(s Store) (int64, error) {
		return s.Del(ctx, keys...)
	}, func(p pending) {
		for _, key := range keys {
			p.del(key)
		}
	})
}

func (fs *FailoverStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	return do(fs, "exists", firstKey(keys), func(s Store) (int64, error) {
		return s.Exists(ctx, keys...)
	}, nil)
}

func (fs *FailoverStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return do(fs, "ttl", key, func(s Store) (time.Duration, error) {
		return s.TTL(ctx, key)
	}, nil)
}

func (fs *FailoverStore) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return do(fs, "incrby", key, func(s Store) (int64, error) {
		return s.IncrBy(ctx, key, n)
	}, func(p pending) { p.incr(key, n) })
}

// Ping checks the active store.
func (fs *FailoverStore) Ping(ctx context.Context) error {
	return fs.current().Ping(ctx)
}

// ActiveBackend reports "primary" or "fallback".
func (fs *FailoverStore) ActiveBackend() string {
	if fs.current() == fs.primary {
		return "primary"
	}
	return "fallback"
}

// Failovers counts switches to the fallback since construction.
func (fs *FailoverStore) Failovers() int64 {
	return fs.failovers.Load()
}

// Primary returns the wrapped primary store.
func (fs *FailoverStore) Primary() Store {
	return fs.primary
}

// Close stops health checks and closes both stores.
func (fs *FailoverStore) Close() error {
	fs.closeOnce.Do(func() { close(fs.closed) })

	fs.mu.Lock()
	done := fs.checkDone
	fs.mu.Unlock()
	if done != nil {
		<-done
	}
	fs.mu.Lock()
	fs.checking = false
	fs.mu.Unlock()

	return errors.Join(fs.primary.Close(), fs.fallback.Close())
}
