package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/proximity-service/internal/model"
	"github.com/sells-group/proximity-service/internal/resilience"
)

// sqliteMaxVars bounds the placeholders in one IN (...) lookup.
const sqliteMaxVars = 500

// SQLiteStore implements RecordStore using modernc.org/sqlite.
type SQLiteStore struct {
	db          *sql.DB
	callTimeout time.Duration
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string, callTimeout time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, callTimeout: callTimeout}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	category   TEXT NOT NULL,
	phone      TEXT,
	hours      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return resilience.Classify(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*model.Record, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, resilience.Classify(err, "sqlite: find by id")
	}
	return r, nil
}

func (s *SQLiteStore) FindAllByIDs(ctx context.Context, ids []string) (map[string]*model.Record, error) {
	out := make(map[string]*model.Record, len(ids))

	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	for start := 0; start < len(ids); start += sqliteMaxVars {
		end := min(start+sqliteMaxVars, len(ids))
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM records WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, resilience.Classify(err, "sqlite: find all by ids")
		}
		for rows.Next() {
			r, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return nil, resilience.Classify(err, "sqlite: scan record")
			}
			out[r.ID] = r
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, resilience.Classify(err, "sqlite: find all by ids")
		}
	}
	return out, nil
}

func (s *SQLiteStore) ScanPage(ctx context.Context, page, size int) ([]model.Record, bool, error) {
	if size <= 0 {
		size = DefaultPageSize
	}

	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records ORDER BY id LIMIT ? OFFSET ?`,
		size+1, page*size)
	if err != nil {
		return nil, false, resilience.Classify(err, "sqlite: scan page")
	}
	defer rows.Close()

	records := make([]model.Record, 0, size)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, false, resilience.Classify(err, "sqlite: scan record")
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, resilience.Classify(err, "sqlite: scan page")
	}

	hasNext := len(records) > size
	if hasNext {
		records = records[:size]
	}
	return records, hasNext, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r *model.Record) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			category = excluded.category,
			phone = excluded.phone,
			hours = excluded.hours,
			updated_at = excluded.updated_at`,
		r.ID, r.Name, r.Address, r.Latitude, r.Longitude, string(r.Category),
		r.Phone, r.Hours, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	return resilience.Classify(err, "sqlite: save")
}

func (s *SQLiteStore) Update(ctx context.Context, r *model.Record) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET
			name = ?, address = ?, latitude = ?, longitude = ?,
			category = ?, phone = ?, hours = ?, updated_at = ?
		WHERE id = ?`,
		r.Name, r.Address, r.Latitude, r.Longitude, string(r.Category),
		r.Phone, r.Hours, r.UpdatedAt.UTC(), r.ID,
	)
	if err != nil {
		return resilience.Classify(err, "sqlite: update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return resilience.Classify(err, "sqlite: update")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrRecordNotFound, "sqlite: update %s", r.ID)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	return resilience.Classify(err, "sqlite: delete")
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.callCtx(ctx)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM records`).Scan(&n); err != nil {
		return 0, resilience.Classify(err, "sqlite: count")
	}
	return n, nil
}
