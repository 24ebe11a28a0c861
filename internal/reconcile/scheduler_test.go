package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/geoindex"
)

func TestScheduler_RepairsDriftPeriodically(t *testing.T) {
	st := newScripted()
	save(t, st, "A", 1, 1)
	idx := geoindex.NewMemory()
	require.NoError(t, idx.Add(context.Background(), "orphan", 0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewScheduler(NewOrchestrator(st, idx), 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		keys, _ := idx.Keys(context.Background())
		_, hasA := keys["A"]
		_, hasOrphan := keys["orphan"]
		return hasA && !hasOrphan
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_SkipsWhileBatchRunning(t *testing.T) {
	st := newScripted()
	o := NewOrchestrator(st, geoindex.NewMemory())
	o.running.Store(true)

	s := NewScheduler(o, time.Minute)
	s.tick(context.Background(), zap.NewNop())
	assert.Zero(t, st.scanCalls)
}
