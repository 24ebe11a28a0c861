package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/proximity-service/internal/resilience"
)

// Classify wraps a pgx error with msg and tags connection failures as
// StoreUnavailable and deadline failures as StoreTimeout.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pgconn.Timeout(err) {
		return resilience.Timeout(eris.Wrap(err, msg))
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return resilience.Unavailable(eris.Wrap(err, msg))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57014": // query_canceled (statement_timeout)
			return resilience.Timeout(eris.Wrap(err, msg))
		case "57P01", "57P02", "57P03", "53300": // admin/crash shutdown, cannot connect now, too many connections
			return resilience.Unavailable(eris.Wrap(err, msg))
		}
		return eris.Wrap(err, msg)
	}
	return resilience.Classify(err, msg)
}

// IsNoRows reports whether err is pgx's empty-result error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
