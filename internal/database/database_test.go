package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesAndEnforcesConstraints(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Ping(ctx, db))

	var fk int
	require.NoError(t, db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"players", "queue_tickets", "matches", "match_player_stats", "settlements", "wallets", "ledger_entries", "anomaly_flags", "smurf_scores", "server_instances", "outbox_events"} {
		var n int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}

	// Tickets must reference a player.
	_, err = db.ExecContext(ctx, `INSERT INTO queue_tickets (id, user_id, ladder, region, rating_at_join, status, joined_at)
		VALUES ('t1', 'nobody', 'ranked', 'EU', 1000, 'WAITING', CURRENT_TIMESTAMP)`)
	assert.Error(t, err)
}

func TestOpen_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
