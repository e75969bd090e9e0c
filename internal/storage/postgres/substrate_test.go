package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-money-tracker/internal/storage"
)

func TestSubstrate_PostReadEdit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewSubstrate(pool, 0)

	h, err := s.Post(ctx, "token", []byte(`{"v":1}`))
	require.NoError(t, err)
	assert.NotZero(t, h)

	got, err := s.Read(ctx, "token", h)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	require.NoError(t, s.Edit(ctx, "token", h, []byte(`{"v":2}`)))
	got, err = s.Read(ctx, "token", h)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got))

	_, err = s.Read(ctx, "wallet", h)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSubstrate_DeleteIsReportedOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewSubstrate(pool, 0)

	h, err := s.Post(ctx, "signal", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "signal", h))
	assert.ErrorIs(t, s.Delete(ctx, "signal", h), storage.ErrNotFound)
	assert.ErrorIs(t, s.Edit(ctx, "signal", h, []byte("y")), storage.ErrNotFound)
}

func TestSubstrate_Anchor(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewSubstrate(pool, 0)

	_, err := s.Anchor(ctx, "index")
	require.ErrorIs(t, err, storage.ErrNoAnchor)

	h1, err := s.Post(ctx, "index", []byte("first"))
	require.NoError(t, err)
	h2, err := s.Post(ctx, "index", []byte("second"))
	require.NoError(t, err)

	require.NoError(t, s.Pin(ctx, "index", h1))
	require.NoError(t, s.Pin(ctx, "index", h2))

	got, err := s.Anchor(ctx, "index")
	require.NoError(t, err)
	assert.Equal(t, h2, got)

	// pinning a message from another partition is refused
	other, err := s.Post(ctx, "token", []byte("z"))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Pin(ctx, "index", other), storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "index", h2))
	_, err = s.Anchor(ctx, "index")
	assert.ErrorIs(t, err, storage.ErrNoAnchor)
}

func TestSubstrate_PayloadCeiling(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	s := NewSubstrate(pool, 16)

	_, err := s.Post(ctx, "token", []byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, storage.ErrPayloadTooLarge)
	assert.Equal(t, 16, s.MaxPayload())
}
