package geoindex

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/proximity-service/internal/db"
)

// srid is WGS 84.
const srid = 4326

// PostGIS implements Index as a PostGIS table queried through geography
// distance. The table holds only keys and points; records live elsewhere.
type PostGIS struct {
	pool        db.Pool
	callTimeout time.Duration
}

// NewPostGIS wraps pool. callTimeout bounds every statement; zero disables
// the per-call deadline.
func NewPostGIS(pool db.Pool, callTimeout time.Duration) *PostGIS {
	return &PostGIS{pool: pool, callTimeout: callTimeout}
}

const postgisMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS geo_index (
	key  TEXT PRIMARY KEY,
	geom geometry(Point, 4326) NOT NULL,
	seq  BIGSERIAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_geo_index_geog ON geo_index USING GIST ((geom::geography));
`

func (p *PostGIS) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.callTimeout)
}

// Migrate implements Index.
func (p *PostGIS) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgisMigration)
	return db.Classify(err, "geoindex: migrate")
}

// EncodePoint returns the little-endian EWKB encoding of (lon, lat) with SRID 4326.
func EncodePoint(lon, lat float64) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(srid)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geoindex: encode point")
	}
	return data, nil
}

// Add implements Index.
func (p *PostGIS) Add(ctx context.Context, key string, lon, lat float64) error {
	wkb, err := EncodePoint(lon, lat)
	if err != nil {
		return err
	}

	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	_, err = p.pool.Exec(ctx, `
		INSERT INTO geo_index (key, geom) VALUES ($1, ST_GeomFromEWKB($2))
		ON CONFLICT (key) DO UPDATE SET geom = EXCLUDED.geom`,
		key, wkb,
	)
	return db.Classify(err, "geoindex: add")
}

// Remove implements Index.
func (p *PostGIS) Remove(ctx context.Context, key string) error {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `DELETE FROM geo_index WHERE key = $1`, key)
	return db.Classify(err, "geoindex: remove")
}

// Keys implements Index.
func (p *PostGIS) Keys(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT key FROM geo_index`)
	if err != nil {
		return nil, db.Classify(err, "geoindex: keys")
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, db.Classify(err, "geoindex: scan key")
		}
		keys[k] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err, "geoindex: keys")
	}
	return keys, nil
}

// Search implements Index.
func (p *PostGIS) Search(ctx context.Context, lon, lat, radiusMeters float64, limit int) ([]Hit, error) {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	// LIMIT NULL means no limit.
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := p.pool.Query(ctx, `
		SELECT key,
		       ST_Distance(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM geo_index
		WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance, seq
		LIMIT $4`,
		lon, lat, radiusMeters, limitArg,
	)
	if err != nil {
		return nil, db.Classify(err, "geoindex: search")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Key, &h.DistanceMeters); err != nil {
			return nil, db.Classify(err, "geoindex: scan hit")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err, "geoindex: search")
	}
	return hits, nil
}

// DeleteAll implements Index.
func (p *PostGIS) DeleteAll(ctx context.Context) error {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `DELETE FROM geo_index`)
	return db.Classify(err, "geoindex: delete all")
}

// Wipe implements Index.
func (p *PostGIS) Wipe(ctx context.Context) error {
	ctx, cancel := p.callCtx(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `TRUNCATE geo_index RESTART IDENTITY`)
	return db.Classify(err, "geoindex: wipe")
}
