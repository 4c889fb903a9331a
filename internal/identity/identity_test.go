package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/db"
	"atlas/internal/migrate"
)

func newStore(t *testing.T) Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return Store{DB: conn, Now: func() time.Time {
		return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}}
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "Maria@Zelenza.com", "secret123", true)
	require.NoError(t, err)
	assert.Equal(t, "maria@zelenza.com", id.Email)
	assert.True(t, id.Confirmed)

	got, err := s.Authenticate(ctx, "maria@zelenza.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)

	_, err = s.Authenticate(ctx, "maria@zelenza.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "nadie@zelenza.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateDuplicateEmail(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "maria@zelenza.com", "secret123", true)
	require.NoError(t, err)
	_, err = s.Create(ctx, "maria@zelenza.com", "other1234", true)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeleteRemovesCredentials(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "maria@zelenza.com", "secret123", true)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, id.ID))
	_, err = s.Get(ctx, id.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, id.ID), ErrNotFound)
}

func TestUpdatePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "maria@zelenza.com", "secret123", true)
	require.NoError(t, err)

	require.NoError(t, s.UpdatePassword(ctx, id.ID, "newsecret1"))
	_, err = s.Authenticate(ctx, "maria@zelenza.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "maria@zelenza.com", "newsecret1")
	require.NoError(t, err)
}
