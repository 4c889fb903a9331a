package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas/internal/db"
)

func TestUpAppliesOnceAndRecordsVersion(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	n, err := Up(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := Version(conn)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// A second run finds nothing pending.
	n, err = Up(conn)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// The ledger names the applied step.
	var name string
	require.NoError(t, conn.QueryRow(
		`SELECT name FROM schema_migrations WHERE version=1`).Scan(&name))
	assert.Equal(t, "001_init", name)
}
