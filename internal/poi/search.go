package poi

import (
	"context"
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proximity-service/internal/geoindex"
	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/store"
)

// Searcher answers proximity queries by joining geo-index hits with records.
type Searcher struct {
	index geoindex.Index
	store store.RecordStore
}

// NewSearcher returns a Searcher over index and st.
func NewSearcher(index geoindex.Index, st store.RecordStore) *Searcher {
	return &Searcher{index: index, store: st}
}

// SearchNearby returns up to limit records within radiusMeters of (lat, lon),
// nearest first. Index entries whose record no longer exists are dropped.
func (s *Searcher) SearchNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) (*model.SearchResponse, error) {
	hits, err := s.index.Search(ctx, lon, lat, radiusMeters, limit)
	if err != nil {
		return nil, eris.Wrap(err, "poi: search index")
	}
	if len(hits) == 0 {
		return emptyResponse(), nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Key
	}
	records, err := s.store.FindAllByIDs(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "poi: hydrate search hits")
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		r, ok := records[h.Key]
		if !ok || r == nil {
			continue
		}
		results = append(results, model.SearchResult{
			ID:             r.ID,
			Name:           r.Name,
			Address:        r.Address,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			DistanceMeters: math.Round(h.DistanceMeters*10) / 10,
			Category:       r.Category,
		})
	}
	if len(results) == 0 {
		return emptyResponse(), nil
	}
	return &model.SearchResponse{Total: len(results), Results: results}, nil
}

func emptyResponse() *model.SearchResponse {
	return &model.SearchResponse{Results: []model.SearchResult{}, Message: model.NoResultsMessage}
}

// SearchLimits bounds and defaults search parameters supplied by callers.
type SearchLimits struct {
	DefaultRadius float64
	MaxRadius     float64
	DefaultLimit  int
	MaxLimit      int
}

// DefaultSearchLimits returns 5 km default radius up to 20 km, and 20
// results by default up to 50.
func DefaultSearchLimits() SearchLimits {
	return SearchLimits{DefaultRadius: 5000, MaxRadius: 20000, DefaultLimit: 20, MaxLimit: 50}
}

// ParamError describes one out-of-range search parameter.
type ParamError struct {
	Field      string
	ValidRange string
	Received   any
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s must be within %s, got %v", e.Field, e.ValidRange, e.Received)
}

// Unwrap makes errors.Is(err, model.ErrInvalidParameter) hold.
func (e *ParamError) Unwrap() error { return model.ErrInvalidParameter }

// Resolve validates the query and fills defaults for a nil radius or limit.
func (l SearchLimits) Resolve(lat, lon float64, radius *float64, limit *int) (float64, int, error) {
	if lat < -90 || lat > 90 || math.IsNaN(lat) {
		return 0, 0, &ParamError{Field: "latitude", ValidRange: "-90 ~ 90", Received: lat}
	}
	if lon < -180 || lon > 180 || math.IsNaN(lon) {
		return 0, 0, &ParamError{Field: "longitude", ValidRange: "-180 ~ 180", Received: lon}
	}

	r := l.DefaultRadius
	if radius != nil {
		r = *radius
	}
	if r < 1 || r > l.MaxRadius || math.IsNaN(r) {
		return 0, 0, &ParamError{Field: "radius", ValidRange: fmt.Sprintf("1 ~ %g", l.MaxRadius), Received: r}
	}

	n := l.DefaultLimit
	if limit != nil {
		n = *limit
	}
	if n < 1 || n > l.MaxLimit {
		return 0, 0, &ParamError{Field: "limit", ValidRange: fmt.Sprintf("1 ~ %d", l.MaxLimit), Received: n}
	}
	return r, n, nil
}
