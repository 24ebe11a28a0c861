// Package geoindex implements the disposable geospatial index: a set of
// (key, longitude, latitude) points supporting radius search sorted by
// distance.
package geoindex

import "context"

// Hit is one radius-search match.
type Hit struct {
	Key            string
	DistanceMeters float64
}

// Index is the geo-index contract. Coordinates are WGS 84 degrees.
type Index interface {
	// Add inserts key at (lon, lat), replacing any previous position.
	Add(ctx context.Context, key string, lon, lat float64) error

	// Remove deletes key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error

	// Keys returns every member key.
	Keys(ctx context.Context) (map[string]struct{}, error)

	// Search returns members within radiusMeters of (lon, lat), nearest
	// first; equal distances keep insertion order. limit <= 0 means no limit.
	Search(ctx context.Context, lon, lat, radiusMeters float64, limit int) ([]Hit, error)

	// DeleteAll removes every member.
	DeleteAll(ctx context.Context) error

	// Wipe drops and recreates the underlying storage.
	Wipe(ctx context.Context) error

	// Migrate creates the index storage if needed.
	Migrate(ctx context.Context) error
}
