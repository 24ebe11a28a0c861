// Package store implements the authoritative record collection (the primary
// store) over Postgres, SQLite and process memory.
package store

import (
	"context"

	"github.com/sells-group/proximity-service/internal/model"
)

// DefaultPageSize is the page size used by batch scans.
const DefaultPageSize = 500

// RecordStore is the primary store contract. Lookups return (nil, nil) when
// the record is absent. Infrastructure failures are tagged with
// resilience.ErrStoreUnavailable or resilience.ErrStoreTimeout.
type RecordStore interface {
	// FindByID returns the record with id, or nil when absent.
	FindByID(ctx context.Context, id string) (*model.Record, error)

	// FindAllByIDs returns the records that exist among ids, keyed by id.
	// Missing ids are simply absent from the map.
	FindAllByIDs(ctx context.Context, ids []string) (map[string]*model.Record, error)

	// ScanPage returns the page-th page of size records in stable id order and
	// whether another page follows.
	ScanPage(ctx context.Context, page, size int) ([]model.Record, bool, error)

	// Save inserts or replaces r. CreatedAt is never overwritten on replace.
	Save(ctx context.Context, r *model.Record) error

	// Update overwrites the mutable fields of an existing record. It never
	// inserts; an absent id yields model.ErrRecordNotFound.
	Update(ctx context.Context, r *model.Record) error

	// Delete removes the record with id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// Migrate creates the schema if needed.
	Migrate(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
