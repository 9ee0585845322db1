package kv

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore counts calls and fails on demand.
type fakeStore struct {
	calls     atomic.Int64
	down      atomic.Bool // operations return ErrBackendUnavailable
	broken    atomic.Bool // operations return a non-connection error
	pingFails atomic.Int64
	closed    atomic.Bool
	missing   bool
}

var errBusiness = errors.New("wrong type")

func (f *fakeStore) check() error {
	f.calls.Add(1)
	switch {
	case f.down.Load():
		return ErrBackendUnavailable
	case f.broken.Load():
		return errBusiness
	}
	return nil
}

func (f *fakeStore) Set(context.Context, string, []byte, ...time.Duration) error { return f.check() }

func (f *fakeStore) Get(context.Context, string) ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if f.missing {
		return nil, ErrNotFound
	}
	return []byte("value"), nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) (int64, error) {
	return int64(len(keys)), f.check()
}

func (f *fakeStore) Exists(context.Context, ...string) (int64, error) { return 1, f.check() }

func (f *fakeStore) TTL(context.Context, string) (time.Duration, error) { return time.Minute, f.check() }

func (f *fakeStore) IncrBy(_ context.Context, _ string, n int64) (int64, error) { return n, f.check() }

func (f *fakeStore) Ping(context.Context) error {
	if f.pingFails.Load() > 0 {
		f.pingFails.Add(-1)
		return ErrBackendUnavailable
	}
	return nil
}

func (f *fakeStore) Close() error {
	f.closed.Store(true)
	return nil
}

// valueStore keeps values so replays can be checked.
type valueStore struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	down   atomic.Bool
}

func newValueStore() *valueStore {
	return &valueStore{values: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (v *valueStore) Set(_ context.Context, key string, value []byte, ttl ...time.Duration) error {
	if v.down.Load() {
		return ErrBackendUnavailable
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[key] = value
	delete(v.ttls, key)
	if len(ttl) > 0 && ttl[0] > 0 {
		v.ttls[key] = ttl[0]
	}
	return nil
}

func (v *valueStore) Get(_ context.Context, key string) ([]byte, error) {
	if v.down.Load() {
		return nil, ErrBackendUnavailable
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	value, ok := v.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (v *valueStore) Del(_ context.Context, keys ...string) (int64, error) {
	if v.down.Load() {
		return 0, ErrBackendUnavailable
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := v.values[key]; ok {
			delete(v.values, key)
			delete(v.ttls, key)
			n++
		}
	}
	return n, nil
}

func (v *valueStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, key := range keys {
		if _, err := v.Get(ctx, key); err == nil {
			n++
		}
	}
	return n, nil
}

func (v *valueStore) TTL(_ context.Context, key string) (time.Duration, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.values[key]; !ok {
		return 0, ErrNotFound
	}
	if ttl, ok := v.ttls[key]; ok {
		return ttl, nil
	}
	return -1, nil
}

func (v *valueStore) IncrBy(_ context.Context, key string, n int64) (int64, error) {
	if v.down.Load() {
		return 0, ErrBackendUnavailable
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	var current int64
	if raw, ok := v.values[key]; ok {
		current, _ = strconv.ParseInt(string(raw), 10, 64)
	}
	current += n
	v.values[key] = []byte(strconv.FormatInt(current, 10))
	return current, nil
}

func (v *valueStore) Ping(context.Context) error {
	if v.down.Load() {
		return ErrBackendUnavailable
	}
	return nil
}

func (v *valueStore) Close() error { return nil }

func (v *valueStore) value(key string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return string(v.values[key])
}

type logEntry struct {
	msg    string
	fields map[string]any
}

type logRecorder struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *logRecorder) log(msg string, fields ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := logEntry{msg: msg, fields: make(map[string]any)}
	for i := 0; i+1 < len(fields); i += 2 {
		e.fields[fields[i].(string)] = fields[i+1]
	}
	l.entries = append(l.entries, e)
}

func (l *logRecorder) entry(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func TestFailoverStore_BasicFailover(t *testing.T) {
	primary, fallback := &fakeStore{}, &fakeStore{}
	logs := &logRecorder{}
	primary.pingFails.Store(1 << 30)

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, logs.log)
	defer fs.Close()

	ctx := context.Background()
	assert.Equal(t, "primary", fs.ActiveBackend())

	require.NoError(t, fs.Set(ctx, "hylo:a", []byte("1")))
	assert.EqualValues(t, 1, primary.calls.Load())

	primary.down.Store(true)
	require.NoError(t, fs.Set(ctx, "hylo:quotes:q-1", []byte("2")))

	assert.Equal(t, "fallback", fs.ActiveBackend())
	assert.EqualValues(t, 1, fallback.calls.Load())
	assert.EqualValues(t, 1, fs.Failovers())

	e, ok := logs.entry("Failing over to in-memory store")
	require.True(t, ok)
	assert.Equal(t, "set", e.fields["op"])
	assert.Equal(t, "hylo:quotes:q-1", e.fields["key"])
	assert.Equal(t, ErrBackendUnavailable.Error(), e.fields["error"])
	assert.EqualValues(t, 1, e.fields["failovers"])
}

func TestFailoverStore_Recovery(t *testing.T) {
	primary, fallback := &fakeStore{}, &fakeStore{}
	logs := &logRecorder{}
	primary.pingFails.Store(2)

	fs := NewFailoverStoreWithFallbackActive(primary, fallback, 10*time.Millisecond, logs.log)
	defer fs.Close()

	assert.Equal(t, "fallback", fs.ActiveBackend())

	assert.Eventually(t, func() bool {
		return fs.ActiveBackend() == "primary"
	}, time.Second, 5*time.Millisecond)
	e, ok := logs.entry("Recovered to primary store")
	require.True(t, ok)
	assert.Equal(t, "startup", e.fields["trigger_op"])
	assert.Equal(t, 0, e.fields["replayed"])
}

func TestFailoverStore_NoFailoverOnBusinessError(t *testing.T) {
	primary, fallback := &fakeStore{}, &fakeStore{}

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	primary.broken.Store(true)
	_, err := fs.IncrBy(context.Background(), "hylo:n", 1)
	require.ErrorIs(t, err, errBusiness)

	assert.Equal(t, "primary", fs.ActiveBackend())
	assert.Zero(t, fallback.calls.Load())
}

func TestFailoverStore_ErrNotFoundHandling(t *testing.T) {
	primary, fallback := &fakeStore{missing: true}, &fakeStore{}

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	_, err := fs.Get(context.Background(), "hylo:missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "primary", fs.ActiveBackend())
}

func TestFailoverStore_ConcurrentAccess(t *testing.T) {
	primary, fallback := &fakeStore{}, &fakeStore{}
	primary.pingFails.Store(1 << 30)

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, nil)
	defer fs.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i == 8 && j == 25 {
					primary.down.Store(true)
				}
				_, err := fs.Get(ctx, "hylo:k")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "fallback", fs.ActiveBackend())
}

func TestFailoverStore_CloseStopsHealthChecks(t *testing.T) {
	primary, fallback := &fakeStore{}, &fakeStore{}
	primary.pingFails.Store(1 << 30)

	fs := NewFailoverStoreWithFallbackActive(primary, fallback, 5*time.Millisecond, nil)
	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	assert.True(t, primary.closed.Load())
	assert.True(t, fallback.closed.Load())
	assert.False(t, fs.checking)
}

func TestFailoverStore_ReplaysOutageWrites(t *testing.T) {
	primary, fallback := newValueStore(), newValueStore()
	logs := &logRecorder{}
	ctx := context.Background()

	require.NoError(t, primary.Set(ctx, "hylo:snapshot:latest", []byte("slot-100")))
	require.NoError(t, primary.Set(ctx, "hylo:quotes:stale", []byte("old")))
	_, err := primary.IncrBy(ctx, "hylo:quotes:count:JITOSOL-HYUSD", 5)
	require.NoError(t, err)

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, logs.log)
	defer fs.Close()

	primary.down.Store(true)
	require.NoError(t, fs.Set(ctx, "hylo:snapshot:latest", []byte("slot-200")))
	require.NoError(t, fs.Set(ctx, "hylo:quotes:q-7", []byte("quote"), time.Minute))
	_, err = fs.IncrBy(ctx, "hylo:quotes:count:JITOSOL-HYUSD", 2)
	require.NoError(t, err)
	require.NoError(t, fs.Set(ctx, "hylo:quotes:stale", []byte("tmp")))
	_, err = fs.Del(ctx, "hylo:quotes:stale")
	require.NoError(t, err)
	assert.Equal(t, "fallback", fs.ActiveBackend())

	// Reads during the outage do not count as writes.
	_, err = fs.Get(ctx, "hylo:quotes:q-7")
	require.NoError(t, err)

	primary.down.Store(false)
	require.Eventually(t, func() bool {
		return fs.ActiveBackend() == "primary"
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "slot-200", primary.value("hylo:snapshot:latest"))
	assert.Equal(t, "quote", primary.value("hylo:quotes:q-7"))
	assert.Equal(t, "7", primary.value("hylo:quotes:count:JITOSOL-HYUSD"), "counter replayed as a delta")

	ttl, err := primary.TTL(ctx, "hylo:quotes:q-7")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)
	_, err = primary.Get(ctx, "hylo:quotes:stale")
	assert.ErrorIs(t, err, ErrNotFound)

	e, ok := logs.entry("Recovered to primary store")
	require.True(t, ok)
	assert.Equal(t, "set", e.fields["trigger_op"])
	assert.Equal(t, "hylo:snapshot:latest", e.fields["trigger_key"])
	assert.Equal(t, 4, e.fields["replayed"])
	assert.Equal(t, 0, e.fields["unreplayed"])
}

// flakyStore answers pings but fails writes a fixed number of times.
type flakyStore struct {
	*valueStore
	failSets atomic.Int64
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error {
	if f.failSets.Load() > 0 {
		f.failSets.Add(-1)
		return ErrBackendUnavailable
	}
	return f.valueStore.Set(ctx, key, value, ttl...)
}

func TestFailoverStore_ReplayFailureStaysOnFallback(t *testing.T) {
	primary := &flakyStore{valueStore: newValueStore()}
	fallback := newValueStore()
	logs := &logRecorder{}
	ctx := context.Background()

	fs := NewFailoverStore(primary, fallback, 10*time.Millisecond, logs.log)
	defer fs.Close()

	primary.failSets.Store(2)
	require.NoError(t, fs.Set(ctx, "hylo:quotes:q-1", []byte("a")))
	assert.Equal(t, "fallback", fs.ActiveBackend())

	require.Eventually(t, func() bool {
		return fs.ActiveBackend() == "primary"
	}, time.Second, 5*time.Millisecond)

	_, failed := logs.entry("Replay to primary store failed; staying on in-memory store")
	assert.True(t, failed)
	assert.Equal(t, "a", primary.value("hylo:quotes:q-1"))
}

func TestPendingOrdering(t *testing.T) {
	tests := []struct {
		name         string
		apply        func(p pending)
		wantWritten  []string
		wantDeleted  []string
		wantCounters map[string]int64
	}{
		{
			name: "delete after set",
			apply: func(p pending) {
				p.set("a")
				p.del("a")
			},
			wantDeleted: []string{"a"},
		},
		{
			name: "set after counter",
			apply: func(p pending) {
				p.incr("a", 3)
				p.set("a")
			},
			wantWritten: []string{"a"},
		},
		{
			name: "counter after set folds into value",
			apply: func(p pending) {
				p.set("a")
				p.incr("a", 3)
			},
			wantWritten: []string{"a"},
		},
		{
			name: "counters accumulate",
			apply: func(p pending) {
				p.incr("a", 3)
				p.incr("a", -1)
			},
			wantCounters: map[string]int64{"a": 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPending()
			tt.apply(p)
			assert.ElementsMatch(t, tt.wantWritten, keysOf(p.written))
			assert.ElementsMatch(t, tt.wantDeleted, keysOf(p.deleted))
			if tt.wantCounters == nil {
				assert.Empty(t, p.counters)
			} else {
				assert.Equal(t, tt.wantCounters, p.counters)
			}
		})
	}
}

func TestPendingMergeOlder(t *testing.T) {
	older := newPending()
	older.set("kept")
	older.set("overwritten")
	older.del("recreated")
	older.incr("count", 2)

	newer := newPending()
	newer.del("overwritten")
	newer.incr("recreated", 1)
	newer.incr("count", 3)

	newer.mergeOlder(older)
	assert.ElementsMatch(t, []string{"kept"}, keysOf(newer.written))
	assert.ElementsMatch(t, []string{"overwritten"}, keysOf(newer.deleted))
	assert.Equal(t, map[string]int64{"recreated": 1, "count": 5}, newer.counters)
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
