package poi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/store"
)

// metersPerDegreeLat matches the haversine Earth radius used by the memory index.
const metersPerDegreeLat = 6371008.8 * 3.141592653589793 / 180

// countingStore counts hydration calls.
type countingStore struct {
	*store.MemoryStore
	findAll int
}

func (s *countingStore) FindAllByIDs(ctx context.Context, ids []string) (map[string]*model.Record, error) {
	s.findAll++
	return s.MemoryStore.FindAllByIDs(ctx, ids)
}

func put(t *testing.T, st store.RecordStore, idx geoindex.Index, id string, lat, lon float64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, &model.Record{
		ID: id, Name: id, Address: "addr", Latitude: lat, Longitude: lon, Category: model.CategoryCafe,
	}))
	require.NoError(t, idx.Add(ctx, id, lon, lat))
}

func TestSearchNearby_RadiusCutoff(t *testing.T) {
	st, idx := store.NewMemory(), geoindex.NewMemory()
	lat, lon := 37.5012, 127.0396
	put(t, st, idx, "near", lat+30/metersPerDegreeLat, lon)
	put(t, st, idx, "far", lat+70/metersPerDegreeLat, lon)

	resp, err := NewSearcher(idx, st).SearchNearby(context.Background(), lat, lon, 50, 20)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "near", resp.Results[0].ID)
	assert.Equal(t, 30.0, resp.Results[0].DistanceMeters)
	assert.Empty(t, resp.Message)
}

func TestSearchNearby_OrderLimitAndRounding(t *testing.T) {
	st, idx := store.NewMemory(), geoindex.NewMemory()
	lat, lon := 37.5, 127.0
	put(t, st, idx, "c", lat+300.04/metersPerDegreeLat, lon)
	put(t, st, idx, "a", lat+100.26/metersPerDegreeLat, lon)
	put(t, st, idx, "b", lat+200/metersPerDegreeLat, lon)

	resp, err := NewSearcher(idx, st).SearchNearby(context.Background(), lat, lon, 1000, 2)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "a", resp.Results[0].ID)
	assert.Equal(t, 100.3, resp.Results[0].DistanceMeters)
	assert.Equal(t, "b", resp.Results[1].ID)
}

func TestSearchNearby_DropsOrphans(t *testing.T) {
	st, idx := store.NewMemory(), geoindex.NewMemory()
	put(t, st, idx, "kept", 37.5, 127.0)
	require.NoError(t, idx.Add(context.Background(), "orphan-1", 127.0, 37.5001))

	resp, err := NewSearcher(idx, st).SearchNearby(context.Background(), 37.5, 127.0, 100, 20)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "kept", resp.Results[0].ID)
}

func TestSearchNearby_OnlyOrphansIsEmpty(t *testing.T) {
	idx := geoindex.NewMemory()
	require.NoError(t, idx.Add(context.Background(), "orphan-1", 127.0, 37.5))

	resp, err := NewSearcher(idx, store.NewMemory()).SearchNearby(context.Background(), 37.5, 127.0, 100, 20)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.Equal(t, model.NoResultsMessage, resp.Message)
}

func TestSearchNearby_EmptyCarriesHint(t *testing.T) {
	st := &countingStore{MemoryStore: store.NewMemory()}
	resp, err := NewSearcher(geoindex.NewMemory(), st).SearchNearby(context.Background(), 37.5, 127.0, 5000, 20)
	require.NoError(t, err)
	assert.Zero(t, resp.Total)
	assert.NotNil(t, resp.Results)
	assert.Equal(t, model.NoResultsMessage, resp.Message)
	assert.Zero(t, st.findAll)
}

func TestSearchNearby_SingleHydrationCall(t *testing.T) {
	st := &countingStore{MemoryStore: store.NewMemory()}
	idx := geoindex.NewMemory()
	for _, id := range []string{"a", "b", "c", "d"} {
		put(t, st, idx, id, 37.5, 127.0)
	}

	resp, err := NewSearcher(idx, st).SearchNearby(context.Background(), 37.5, 127.0, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 1, st.findAll)
}

func TestSearchNearby_Repeatable(t *testing.T) {
	st, idx := store.NewMemory(), geoindex.NewMemory()
	for _, id := range []string{"x", "y", "z"} {
		put(t, st, idx, id, 37.5, 127.0)
	}
	s := NewSearcher(idx, st)

	first, err := s.SearchNearby(context.Background(), 37.5, 127.0, 10, 50)
	require.NoError(t, err)
	second, err := s.SearchNearby(context.Background(), 37.5, 127.0, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "x", first.Results[0].ID)
}

type brokenIndex struct{ *geoindex.Memory }

func (brokenIndex) Search(context.Context, float64, float64, float64, int) ([]geoindex.Hit, error) {
	return nil, errors.New("index down")
}

func TestSearchNearby_IndexError(t *testing.T) {
	_, err := NewSearcher(brokenIndex{geoindex.NewMemory()}, store.NewMemory()).
		SearchNearby(context.Background(), 37.5, 127.0, 10, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index down")
}

func TestSearchLimits_Resolve(t *testing.T) {
	l := DefaultSearchLimits()

	r, n, err := l.Resolve(37.5, 127.0, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, r)
	assert.Equal(t, 20, n)

	radius, limit := 20000.0, 50
	r, n, err = l.Resolve(-90, 180, &radius, &limit)
	require.NoError(t, err)
	assert.Equal(t, 20000.0, r)
	assert.Equal(t, 50, n)

	tests := []struct {
		name   string
		lat    float64
		lon    float64
		radius float64
		limit  int
		field  string
	}{
		{"latitude high", 90.1, 0, 100, 1, "latitude"},
		{"longitude low", 0, -180.5, 100, 1, "longitude"},
		{"radius zero", 0, 0, 0, 1, "radius"},
		{"radius too big", 0, 0, 20001, 1, "radius"},
		{"limit zero", 0, 0, 100, 0, "limit"},
		{"limit too big", 0, 0, 100, 51, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.Resolve(tt.lat, tt.lon, &tt.radius, &tt.limit)
			require.ErrorIs(t, err, model.ErrInvalidParameter)
			var pe *ParamError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}
