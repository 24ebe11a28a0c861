package store

import (
	"context"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proximity-service/internal/model"
)

// MemoryStore is an in-process RecordStore for single-node runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.Record
	ids     []string // sorted keys of records
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.Record)}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *MemoryStore) FindAllByIDs(_ context.Context, ids []string) (map[string]*model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.Record, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			out[id] = &r
		}
	}
	return out, nil
}

func (s *MemoryStore) ScanPage(_ context.Context, page, size int) ([]model.Record, bool, error) {
	if size <= 0 {
		size = DefaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := page * size
	if start >= len(s.ids) {
		return []model.Record{}, false, nil
	}
	end := min(start+size, len(s.ids))

	out := make([]model.Record, 0, end-start)
	for _, id := range s.ids[start:end] {
		out = append(out, s.records[id])
	}
	return out, end < len(s.ids), nil
}

func (s *MemoryStore) Save(_ context.Context, r *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *r
	if prev, ok := s.records[r.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else if i, found := slices.BinarySearch(s.ids, r.ID); !found {
		s.ids = slices.Insert(s.ids, i, r.ID)
	}
	s.records[r.ID] = rec
	return nil
}

func (s *MemoryStore) Update(_ context.Context, r *model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.records[r.ID]
	if !ok {
		return eris.Wrapf(model.ErrRecordNotFound, "memory: update %s", r.ID)
	}
	rec := *r
	rec.CreatedAt = prev.CreatedAt
	s.records[r.ID] = rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	if i, found := slices.BinarySearch(s.ids, id); found {
		s.ids = slices.Delete(s.ids, i, i+1)
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
