package geoindex

import (
	"context"
	"slices"
	"sync"

	"github.com/twpayne/go-geom"
)

type memEntry struct {
	point *geom.Point
	seq   uint64
}

// Memory is an in-process Index.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	nextSeq uint64
}

// NewMemory returns an empty in-process index.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memEntry)}
}

func (m *Memory) Add(_ context.Context, key string, lon, lat float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(srid)
	if prev, ok := m.entries[key]; ok {
		m.entries[key] = memEntry{point: p, seq: prev.seq}
		return nil
	}
	m.nextSeq++
	m.entries[key] = memEntry{point: p, seq: m.nextSeq}
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Keys(context.Context) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make(map[string]struct{}, len(m.entries))
	for k := range m.entries {
		keys[k] = struct{}{}
	}
	return keys, nil
}

// Position returns the stored coordinates of key.
func (m *Memory) Position(key string) (lon, lat float64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return 0, 0, false
	}
	return e.point.X(), e.point.Y(), true
}

func (m *Memory) Search(_ context.Context, lon, lat, radiusMeters float64, limit int) ([]Hit, error) {
	m.mu.RLock()
	type candidate struct {
		Hit
		seq uint64
	}
	var found []candidate
	for k, e := range m.entries {
		d := Haversine(lon, lat, e.point.X(), e.point.Y())
		if d <= radiusMeters {
			found = append(found, candidate{Hit: Hit{Key: k, DistanceMeters: d}, seq: e.seq})
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(found, func(a, b candidate) int {
		switch {
		case a.DistanceMeters < b.DistanceMeters:
			return -1
		case a.DistanceMeters > b.DistanceMeters:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	hits := make([]Hit, len(found))
	for i, c := range found {
		hits[i] = c.Hit
	}
	return hits, nil
}

func (m *Memory) DeleteAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

func (m *Memory) Wipe(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]memEntry)
	m.nextSeq = 0
	return nil
}

func (m *Memory) Migrate(context.Context) error { return nil }
