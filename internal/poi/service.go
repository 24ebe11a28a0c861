// Package poi coordinates record mutations and proximity searches across the
// primary store and the geo-index.
package poi

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/store"
)

// Mirror receives index mutations after the primary write commits. It never
// fails from the caller's point of view.
type Mirror interface {
	SyncAdd(ctx context.Context, id string, lon, lat float64)
	SyncRemove(ctx context.Context, id string)
}

// Service implements create, get, update, delete and seed. The primary store
// is always written before the index.
type Service struct {
	store  store.RecordStore
	mirror Mirror
	now    func() time.Time
	newID  func() string
	log    *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService returns a Service writing to st and mirroring into m.
func NewService(st store.RecordStore, m Mirror, opts ...ServiceOption) *Service {
	s := &Service{
		store:  st,
		mirror: m,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
		log:    zap.L().With(zap.String("component", "poi.Service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create persists a new record and adds it to the index.
func (s *Service) Create(ctx context.Context, in model.RecordInput) (*model.Record, error) {
	in, err := prepare(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &model.Record{ID: s.newID(), CreatedAt: now, UpdatedAt: now}
	r.Apply(in)

	if err := s.store.Save(ctx, r); err != nil {
		return nil, eris.Wrap(err, "poi: create")
	}
	s.mirror.SyncAdd(ctx, r.ID, r.Longitude, r.Latitude)

	s.log.Debug("record created", zap.String("id", r.ID), zap.String("category", string(r.Category)))
	return r, nil
}

// Get returns the record with id or ErrRecordNotFound.
func (s *Service) Get(ctx context.Context, id string) (*model.Record, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "poi: get %s", id)
	}
	if r == nil {
		return nil, eris.Wrapf(model.ErrRecordNotFound, "id %s", id)
	}
	return r, nil
}

// Update replaces the mutable fields of record id. The index is touched only
// when the coordinates change.
func (s *Service) Update(ctx context.Context, id string, in model.RecordInput) (*model.Record, error) {
	in, err := prepare(in)
	if err != nil {
		return nil, err
	}

	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	moved := r.Apply(in)
	r.UpdatedAt = s.now()
	// A Delete that commits after the lookup surfaces here as ErrRecordNotFound.
	if err := s.store.Update(ctx, r); err != nil {
		return nil, eris.Wrapf(err, "poi: update %s", id)
	}

	if moved {
		s.mirror.SyncRemove(ctx, r.ID)
		s.mirror.SyncAdd(ctx, r.ID, r.Longitude, r.Latitude)
	}
	return r, nil
}

// Delete removes record id from the store, then from the index.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return eris.Wrapf(err, "poi: delete %s", id)
	}
	s.mirror.SyncRemove(ctx, id)
	return nil
}

// Seed validates every input, then creates each one. Nothing is written
// when any input is invalid. It returns the number of records created.
func (s *Service) Seed(ctx context.Context, inputs []model.RecordInput) (int, error) {
	for i, in := range inputs {
		if err := in.Validate(); err != nil {
			return 0, eris.Wrapf(err, "seed row %d", i+1)
		}
	}

	created := 0
	for _, in := range inputs {
		if _, err := s.Create(ctx, in); err != nil {
			return created, err
		}
		created++
	}
	s.log.Info("seed complete", zap.Int("created", created))
	return created, nil
}

// prepare normalizes text fields and validates in. The category is checked
// first so that an unknown category is reported ahead of any other problem.
func prepare(in model.RecordInput) (model.RecordInput, error) {
	if _, err := model.ParseCategory(in.Category); err != nil {
		return in, err
	}
	in.Name = norm.NFC.String(strings.TrimSpace(in.Name))
	in.Address = norm.NFC.String(strings.TrimSpace(in.Address))
	in.Phone = normalizeOptional(in.Phone)
	in.Hours = normalizeOptional(in.Hours)
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := norm.NFC.String(strings.TrimSpace(*s))
	if v == "" {
		return nil
	}
	return &v
}
