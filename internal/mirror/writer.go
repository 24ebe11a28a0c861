// Package mirror keeps the geo-index following the primary store on a
// best-effort basis. Index writes are retried on transient failures and,
// once retries run out, logged and counted rather than returned: the primary
// write has already committed and the reconciliation job heals the drift.
package mirror

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/resilience"
)

// ErrIndexWriteExhausted marks an index write that failed after its last
// attempt. It appears in log records only.
var ErrIndexWriteExhausted = eris.New("index write exhausted")

// Writer mirrors record mutations into a geoindex.Index.
type Writer struct {
	index       geoindex.Index
	retry       resilience.RetryConfig
	callTimeout time.Duration
	log         *zap.Logger
	failures    atomic.Int64
}

// Option configures a Writer.
type Option func(*Writer)

// WithCallTimeout bounds each individual index call.
func WithCallTimeout(d time.Duration) Option {
	return func(w *Writer) { w.callTimeout = d }
}

// NewWriter returns a Writer over index using the given retry policy.
func NewWriter(index geoindex.Index, retry resilience.RetryConfig, opts ...Option) *Writer {
	w := &Writer{
		index: index,
		retry: retry,
		log:   zap.L().With(zap.String("component", "mirror.Writer")),
	}
	for _, o := range opts {
		o(w)
	}
	if w.retry.OnRetry == nil {
		w.retry.OnRetry = resilience.RetryLogger("geoindex", "mirror")
	}
	return w
}

// SyncAdd places id at (lon, lat) in the index.
func (w *Writer) SyncAdd(ctx context.Context, id string, lon, lat float64) {
	attempts, err := w.run(ctx, func(ctx context.Context) error {
		return w.index.Add(ctx, id, lon, lat)
	})
	if err != nil {
		w.fail("add", id, attempts, err,
			zap.Float64("longitude", lon),
			zap.Float64("latitude", lat),
		)
	}
}

// SyncRemove drops id from the index.
func (w *Writer) SyncRemove(ctx context.Context, id string) {
	attempts, err := w.run(ctx, func(ctx context.Context) error {
		return w.index.Remove(ctx, id)
	})
	if err != nil {
		w.fail("remove", id, attempts, err)
	}
}

// Failures returns the number of index writes given up on since start.
func (w *Writer) Failures() int64 {
	return w.failures.Load()
}

func (w *Writer) run(ctx context.Context, op func(context.Context) error) (int, error) {
	// The primary write already committed; a cancelled caller must not cut
	// the mirror short.
	ctx = context.WithoutCancel(ctx)

	var attempts int
	err := resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		attempts++
		return resilience.WithCallTimeout(ctx, w.callTimeout, op)
	})
	return attempts, err
}

func (w *Writer) fail(operation, id string, attempts int, err error, extra ...zap.Field) {
	w.failures.Add(1)

	fields := append([]zap.Field{
		zap.String("operation", operation),
		zap.String("id", id),
	}, extra...)
	fields = append(fields, zap.Int("attempts", attempts))

	if resilience.IsTransient(err) {
		w.log.Error("index write exhausted",
			append(fields, zap.Error(eris.Wrap(ErrIndexWriteExhausted, err.Error())))...)
		return
	}
	w.log.Error("index write failed", append(fields, zap.Error(err))...)
}
