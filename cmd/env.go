package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proximity-service/internal/config"
	"github.com/sells-group/proximity-service/internal/db"
	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/mirror"
	"github.com/sells-group/proximity-service/internal/poi"
	"github.com/sells-group/proximity-service/internal/reconcile"
	"github.com/sells-group/proximity-service/internal/resilience"
	"github.com/sells-group/proximity-service/internal/store"
)

// serviceEnv holds the stores and the components built on them.
type serviceEnv struct {
	Store        store.RecordStore
	Index        geoindex.Index
	Writer       *mirror.Writer
	Service      *poi.Service
	Searcher     *poi.Searcher
	Orchestrator *reconcile.Orchestrator
	Limits       poi.SearchLimits

	closers []func()
}

// Close releases resources held by the environment.
func (e *serviceEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initEnv validates cfg for mode, opens both stores and wires the
// components. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*serviceEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env := &serviceEnv{}

	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.closers = append(env.closers, func() { _ = st.Close() })

	idx, err := initIndex(ctx, c, st)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Index = idx.index
	if idx.close != nil {
		env.closers = append(env.closers, idx.close)
	}

	retry := resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs, c.Retry.Multiplier)
	env.Writer = mirror.NewWriter(env.Index, retry, mirror.WithCallTimeout(c.GeoIndex.CallTimeout()))
	env.Service = poi.NewService(env.Store, env.Writer)
	env.Searcher = poi.NewSearcher(env.Index, env.Store)
	env.Orchestrator = reconcile.NewOrchestrator(env.Store, env.Index,
		reconcile.WithPageSize(c.Batch.PageSize),
		reconcile.WithIndexWriteRate(c.Batch.IndexWritesPerSec),
	)
	env.Limits = poi.SearchLimits{
		DefaultRadius: c.Search.DefaultRadius,
		MaxRadius:     c.Search.MaxRadius,
		DefaultLimit:  c.Search.DefaultLimit,
		MaxLimit:      c.Search.MaxLimit,
	}

	return env, nil
}

func initStore(ctx context.Context, c *config.Config) (store.RecordStore, error) {
	switch c.Store.Driver {
	case "sqlite":
		return store.NewSQLite(c.Store.DatabaseURL, c.Store.CallTimeout())
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		}, c.Store.CallTimeout())
	case "memory":
		zap.L().Warn("using in-memory primary store; records are lost on exit")
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

type openedIndex struct {
	index geoindex.Index
	close func()
}

func initIndex(ctx context.Context, c *config.Config, st store.RecordStore) (openedIndex, error) {
	switch c.GeoIndex.Driver {
	case "memory":
		return openedIndex{index: geoindex.NewMemory()}, nil
	case "postgis":
		// Share the store pool when both live in the same database.
		if ps, ok := st.(*store.PostgresStore); ok && c.GeoIndexURL() == c.Store.DatabaseURL {
			zap.L().Debug("geo-index using shared database pool")
			return openedIndex{index: geoindex.NewPostGIS(ps.Pool(), c.GeoIndex.CallTimeout())}, nil
		}
		pool, err := db.Connect(ctx, c.GeoIndexURL(), db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
		if err != nil {
			return openedIndex{}, eris.Wrap(err, "connect geo-index")
		}
		return openedIndex{
			index: geoindex.NewPostGIS(pool, c.GeoIndex.CallTimeout()),
			close: pool.Close,
		}, nil
	default:
		return openedIndex{}, eris.Errorf("unsupported geo-index driver: %s", c.GeoIndex.Driver)
	}
}
