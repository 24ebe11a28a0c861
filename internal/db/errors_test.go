package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/proximity-service/internal/resilience"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.Kind
	}{
		{"deadline", context.DeadlineExceeded, resilience.KindTimeout},
		{"statement timeout", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, resilience.KindTimeout},
		{"too many connections", &pgconn.PgError{Code: "53300", Message: "too many clients"}, resilience.KindUnavailable},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, resilience.KindUnavailable},
		{"unique violation", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, 0},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), resilience.KindUnavailable},
		{"plain", errors.New("syntax error"), 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Classify(tc.err, "db: op")
			assert.Equal(t, tc.want, resilience.KindOf(err))
			assert.Contains(t, err.Error(), "db: op")
		})
	}
	assert.NoError(t, Classify(nil, "noop"))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("wrap: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("other")))
}
