package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/resilience"
)

// flakyIndex fails the first failAdds/failRemoves calls with err.
type flakyIndex struct {
	*geoindex.Memory

	mu          sync.Mutex
	err         error
	failAdds    int
	failRemoves int
	adds        int
	removes     int
}

func (f *flakyIndex) Add(ctx context.Context, key string, lon, lat float64) error {
	f.mu.Lock()
	f.adds++
	fail := f.adds <= f.failAdds
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Memory.Add(ctx, key, lon, lat)
}

func (f *flakyIndex) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	f.removes++
	fail := f.removes <= f.failRemoves
	f.mu.Unlock()
	if fail {
		return f.err
	}
	return f.Memory.Remove(ctx, key)
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 4 * time.Millisecond
	return cfg
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(undo)
	return logs
}

func TestSyncAdd_Success(t *testing.T) {
	logs := observe(t)
	idx := &flakyIndex{Memory: geoindex.NewMemory()}
	w := NewWriter(idx, fastRetry())

	w.SyncAdd(context.Background(), "a", 127.04, 37.5)

	lon, lat, ok := idx.Position("a")
	require.True(t, ok)
	assert.Equal(t, 127.04, lon)
	assert.Equal(t, 37.5, lat)
	assert.Equal(t, 1, idx.adds)
	assert.Zero(t, w.Failures())
	assert.Zero(t, logs.FilterMessage("index write exhausted").Len())
}

func TestSyncAdd_RecoversAfterTransientFailures(t *testing.T) {
	observe(t)
	idx := &flakyIndex{
		Memory:   geoindex.NewMemory(),
		err:      resilience.Unavailable(errors.New("connection refused")),
		failAdds: 2,
	}
	w := NewWriter(idx, fastRetry())

	w.SyncAdd(context.Background(), "a", 127.04, 37.5)

	_, _, ok := idx.Position("a")
	assert.True(t, ok)
	assert.Equal(t, 3, idx.adds)
	assert.Zero(t, w.Failures())
}

func TestSyncAdd_ExhaustedIsLoggedNotReturned(t *testing.T) {
	logs := observe(t)
	idx := &flakyIndex{
		Memory:   geoindex.NewMemory(),
		err:      resilience.Timeout(errors.New("i/o timeout")),
		failAdds: 10,
	}
	w := NewWriter(idx, fastRetry())

	w.SyncAdd(context.Background(), "a", 127.04, 37.5)

	assert.Equal(t, 3, idx.adds)
	assert.Equal(t, int64(1), w.Failures())

	entries := logs.FilterMessage("index write exhausted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "add", fields["operation"])
	assert.Equal(t, "a", fields["id"])
	assert.Equal(t, 127.04, fields["longitude"])
	assert.Equal(t, 37.5, fields["latitude"])
	assert.Equal(t, int64(3), fields["attempts"])
	assert.Contains(t, fields["error"], "index write exhausted")
	assert.Equal(t, "mirror.Writer", fields["component"])

	assert.Len(t, logs.FilterMessage("retrying operation").All(), 2)
}

func TestSyncAdd_NonTransientNotRetried(t *testing.T) {
	logs := observe(t)
	idx := &flakyIndex{
		Memory:   geoindex.NewMemory(),
		err:      errors.New("invalid geometry"),
		failAdds: 10,
	}
	w := NewWriter(idx, fastRetry())

	w.SyncAdd(context.Background(), "a", 127.04, 37.5)

	assert.Equal(t, 1, idx.adds)
	assert.Equal(t, int64(1), w.Failures())
	entries := logs.FilterMessage("index write failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["attempts"])
}

func TestSyncRemove_ExhaustedOmitsCoordinates(t *testing.T) {
	logs := observe(t)
	idx := &flakyIndex{
		Memory:      geoindex.NewMemory(),
		err:         resilience.Unavailable(errors.New("connection reset by peer")),
		failRemoves: 10,
	}
	w := NewWriter(idx, fastRetry())

	w.SyncRemove(context.Background(), "gone")

	assert.Equal(t, 3, idx.removes)
	entries := logs.FilterMessage("index write exhausted").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "remove", fields["operation"])
	assert.NotContains(t, fields, "latitude")
	assert.NotContains(t, fields, "longitude")
}

func TestSyncAdd_IgnoresCallerCancellation(t *testing.T) {
	observe(t)
	idx := &flakyIndex{
		Memory:   geoindex.NewMemory(),
		err:      resilience.Unavailable(errors.New("connection refused")),
		failAdds: 1,
	}
	w := NewWriter(idx, fastRetry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.SyncAdd(ctx, "a", 1, 2)

	_, _, ok := idx.Position("a")
	assert.True(t, ok)
	assert.Zero(t, w.Failures())
}

func TestSyncAdd_CallTimeout(t *testing.T) {
	observe(t)
	slow := &slowIndex{Memory: geoindex.NewMemory()}
	cfg := fastRetry()
	cfg.MaxAttempts = 2
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, context.DeadlineExceeded) }
	w := NewWriter(slow, cfg, WithCallTimeout(5*time.Millisecond))

	w.SyncAdd(context.Background(), "a", 1, 2)

	assert.Equal(t, int64(1), w.Failures())
	_, _, ok := slow.Position("a")
	assert.False(t, ok)
}

// slowIndex blocks Add until the call context ends.
type slowIndex struct {
	*geoindex.Memory
}

func (s *slowIndex) Add(ctx context.Context, _ string, _, _ float64) error {
	<-ctx.Done()
	return ctx.Err()
}
