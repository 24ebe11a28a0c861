package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proximity-service/internal/db"
	"github.com/sells-group/proximity-service/internal/model"
)

// PostgresStore implements RecordStore over a pgx pool.
type PostgresStore struct {
	pool        db.Pool
	callTimeout time.Duration
	closeFn     func()
}

// NewPostgresStore wraps pool. callTimeout bounds every statement; zero
// disables the per-call deadline.
func NewPostgresStore(pool db.Pool, callTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, callTimeout: callTimeout}
}

// NewPostgres connects to connString and returns a store that owns the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig, callTimeout time.Duration) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, err
	}
	s := NewPostgresStore(pool, callTimeout)
	s.closeFn = pool.Close
	return s, nil
}

// Pool returns the underlying pool so the geo-index can share it.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	category   TEXT NOT NULL,
	phone      TEXT,
	hours      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
`

const recordColumns = `id, name, address, latitude, longitude, category, phone, hours, created_at, updated_at`

// Migrate implements RecordStore.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return db.Classify(err, "store: migrate")
}

// Close implements RecordStore.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// FindByID implements RecordStore.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*model.Record, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	r, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, db.Classify(err, "store: find by id")
	}
	return r, nil
}

// FindAllByIDs implements RecordStore.
func (s *PostgresStore) FindAllByIDs(ctx context.Context, ids []string) (map[string]*model.Record, error) {
	out := make(map[string]*model.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, db.Classify(err, "store: find all by ids")
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, db.Classify(err, "store: scan record")
		}
		out[r.ID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err, "store: find all by ids")
	}
	return out, nil
}

// ScanPage implements RecordStore.
func (s *PostgresStore) ScanPage(ctx context.Context, page, size int) ([]model.Record, bool, error) {
	if size <= 0 {
		size = DefaultPageSize
	}

	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	// One extra row tells us whether another page follows.
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY id LIMIT $1 OFFSET $2`,
		size+1, page*size)
	if err != nil {
		return nil, false, db.Classify(err, "store: scan page")
	}
	defer rows.Close()

	records := make([]model.Record, 0, size)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, false, db.Classify(err, "store: scan record")
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, db.Classify(err, "store: scan page")
	}

	hasNext := len(records) > size
	if hasNext {
		records = records[:size]
	}
	return records, hasNext, nil
}

// Save implements RecordStore.
func (s *PostgresStore) Save(ctx context.Context, r *model.Record) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			category = EXCLUDED.category,
			phone = EXCLUDED.phone,
			hours = EXCLUDED.hours,
			updated_at = EXCLUDED.updated_at`,
		r.ID, r.Name, r.Address, r.Latitude, r.Longitude, string(r.Category),
		r.Phone, r.Hours, r.CreatedAt, r.UpdatedAt,
	)
	return db.Classify(err, "store: save")
}

// Update implements RecordStore.
func (s *PostgresStore) Update(ctx context.Context, r *model.Record) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE records SET
			name = $2,
			address = $3,
			latitude = $4,
			longitude = $5,
			category = $6,
			phone = $7,
			hours = $8,
			updated_at = $9
		WHERE id = $1`,
		r.ID, r.Name, r.Address, r.Latitude, r.Longitude, string(r.Category),
		r.Phone, r.Hours, r.UpdatedAt,
	)
	if err != nil {
		return db.Classify(err, "store: update")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrRecordNotFound, "store: update %s", r.ID)
	}
	return nil
}

// Delete implements RecordStore.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `DELETE FROM records WHERE id = $1`, id)
	return db.Classify(err, "store: delete")
}

// Count implements RecordStore.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM records`).Scan(&n); err != nil {
		return 0, db.Classify(err, "store: count")
	}
	return n, nil
}

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row/*sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var r model.Record
	var category string
	if err := row.Scan(
		&r.ID, &r.Name, &r.Address, &r.Latitude, &r.Longitude, &category,
		&r.Phone, &r.Hours, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Category = model.Category(category)
	return &r, nil
}
