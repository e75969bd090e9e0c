package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissingMessage(t *testing.T) {
	assert.True(t, isMissingMessage(pgx.ErrNoRows))
	assert.True(t, isMissingMessage(fmt.Errorf("pin: %w", &pgconn.PgError{Code: pgErrForeignKeyViolation})))
	assert.False(t, isMissingMessage(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isMissingMessage(errors.New("connection reset by peer")))
	assert.False(t, isMissingMessage(nil))
}

func TestWithMaxConns(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/tracker")
	require.NoError(t, err)
	def := cfg.MaxConns

	WithMaxConns(0)(cfg)
	assert.Equal(t, def, cfg.MaxConns)

	WithMaxConns(3)(cfg)
	assert.Equal(t, int32(3), cfg.MaxConns)
}
