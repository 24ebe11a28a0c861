// Package reconcile repairs drift between the primary store and the
// geo-index. At most one batch job runs at a time per Orchestrator.
package reconcile

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/store"
)

// Orchestrator runs full rebuilds and consistency checks.
type Orchestrator struct {
	store    store.RecordStore
	index    geoindex.Index
	pageSize int
	limiter  *rate.Limiter
	now      func() time.Time
	log      *zap.Logger

	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPageSize sets the primary-store scan page size.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithIndexWriteRate caps batch index mutations per second. Zero or less
// means unlimited.
func WithIndexWriteRate(perSec float64) Option {
	return func(o *Orchestrator) {
		if perSec > 0 {
			o.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator returns an Orchestrator over st and index.
func NewOrchestrator(st store.RecordStore, index geoindex.Index, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		index:    index,
		pageSize: store.DefaultPageSize,
		now:      func() time.Time { return time.Now().UTC() },
		log:      zap.L().With(zap.String("component", "reconcile.Orchestrator")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Running reports whether a batch job is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// FullSync empties the index and repopulates it from the primary store.
// Individual add failures are counted, not retried.
func (o *Orchestrator) FullSync(ctx context.Context) (model.BatchRunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return model.BatchRunResult{}, model.ErrBatchAlreadyRunning
	}
	defer o.running.Store(false)

	// Once started a batch runs to completion.
	ctx = context.WithoutCancel(ctx)
	res := model.BatchRunResult{Kind: model.BatchKindFullSync, StartedAt: o.now()}

	if err := o.index.DeleteAll(ctx); err != nil {
		return o.failed(res, eris.Wrap(err, "reconcile: clear index")), nil
	}

	err := o.scan(ctx, func(r model.Record) {
		res.TotalProcessed++
		if err := o.add(ctx, r.ID, r.Longitude, r.Latitude); err != nil {
			res.Errors++
			o.log.Error("full sync: index add failed", zap.String("id", r.ID), zap.Error(err))
			return
		}
		res.Added++
	})
	if err != nil {
		return o.failed(res, err), nil
	}
	return o.finish(res, model.StatusFor(res.Errors)), nil
}

// ConsistencyCheck adds records missing from the index and removes index
// keys with no record. Only ids are held in memory.
func (o *Orchestrator) ConsistencyCheck(ctx context.Context) (model.BatchRunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return model.BatchRunResult{}, model.ErrBatchAlreadyRunning
	}
	defer o.running.Store(false)

	ctx = context.WithoutCancel(ctx)
	res := model.BatchRunResult{Kind: model.BatchKindConsistencyCheck, StartedAt: o.now()}

	var authoritative, indexed map[string]struct{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids := make(map[string]struct{})
		err := o.scan(gctx, func(r model.Record) { ids[r.ID] = struct{}{} })
		authoritative = ids
		return err
	})
	g.Go(func() error {
		keys, err := o.index.Keys(gctx)
		if err != nil {
			return eris.Wrap(err, "reconcile: read index keys")
		}
		indexed = keys
		return nil
	})
	if err := g.Wait(); err != nil {
		return o.failed(res, err), nil
	}

	missing := difference(authoritative, indexed)
	orphaned := difference(indexed, authoritative)

	for _, id := range missing {
		r, err := o.store.FindByID(ctx, id)
		if err != nil {
			res.Errors++
			o.log.Error("consistency check: fetch failed", zap.String("id", id), zap.Error(err))
			continue
		}
		if r == nil {
			// Deleted since the scan.
			continue
		}
		if err := o.add(ctx, r.ID, r.Longitude, r.Latitude); err != nil {
			res.Errors++
			o.log.Error("consistency check: index add failed", zap.String("id", id), zap.Error(err))
			continue
		}
		res.Added++
	}

	for _, id := range orphaned {
		if err := o.remove(ctx, id); err != nil {
			res.Errors++
			o.log.Error("consistency check: index remove failed", zap.String("id", id), zap.Error(err))
			continue
		}
		res.Removed++
	}

	res.TotalProcessed = len(authoritative) + len(orphaned)
	return o.finish(res, model.StatusFor(res.Errors)), nil
}

// scan visits every record page by page until the last page.
func (o *Orchestrator) scan(ctx context.Context, visit func(model.Record)) error {
	for page := 0; ; page++ {
		records, hasNext, err := o.store.ScanPage(ctx, page, o.pageSize)
		if err != nil {
			return eris.Wrapf(err, "reconcile: scan page %d", page)
		}
		for _, r := range records {
			visit(r)
		}
		if !hasNext {
			return nil
		}
	}
}

func (o *Orchestrator) add(ctx context.Context, id string, lon, lat float64) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	return o.index.Add(ctx, id, lon, lat)
}

func (o *Orchestrator) remove(ctx context.Context, id string) error {
	if err := o.wait(ctx); err != nil {
		return err
	}
	return o.index.Remove(ctx, id)
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "reconcile: rate limit")
	}
	return nil
}

func (o *Orchestrator) failed(res model.BatchRunResult, err error) model.BatchRunResult {
	res.Errors++
	o.log.Error("batch job failed", zap.String("type", string(res.Kind)), zap.Error(err))
	return o.finish(res, model.BatchStatusFailed)
}

func (o *Orchestrator) finish(res model.BatchRunResult, status model.BatchStatus) model.BatchRunResult {
	res.Status = status
	res.FinishedAt = o.now()
	res.DurationMs = res.FinishedAt.Sub(res.StartedAt).Milliseconds()

	o.log.Info("batch job finished",
		zap.String("type", string(res.Kind)),
		zap.String("status", string(res.Status)),
		zap.Int("total_processed", res.TotalProcessed),
		zap.Int("added", res.Added),
		zap.Int("removed", res.Removed),
		zap.Int("errors", res.Errors),
		zap.Time("started_at", res.StartedAt),
		zap.Time("finished_at", res.FinishedAt),
		zap.Int64("duration_ms", res.DurationMs),
	)
	return res
}

// difference returns the sorted keys of a that are not in b.
func difference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
