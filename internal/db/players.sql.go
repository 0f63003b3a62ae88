package db

import (
	"context"
	"time"
)

const createPlayer = `
INSERT INTO players (id, username, rating, xp, level, is_vip, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

type CreatePlayerParams struct {
	ID        string
	Username  string
	Rating    int64
	Xp        int64
	Level     int64
	IsVip     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreatePlayer(ctx context.Context, arg CreatePlayerParams) error {
	_, err := q.db.ExecContext(ctx, createPlayer,
		arg.ID, arg.Username, arg.Rating, arg.Xp, arg.Level, arg.IsVip, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const ensurePlayer = `
INSERT INTO players (id, username, rating, xp, level, is_vip, created_at, updated_at)
VALUES (?, ?, ?, 0, 1, 0, ?, ?)
ON CONFLICT (id) DO NOTHING
`

type EnsurePlayerParams struct {
	ID       string
	Username string
	Rating   int64
	Now      time.Time
}

// EnsurePlayer inserts a default player row and reports whether one was created.
func (q *Queries) EnsurePlayer(ctx context.Context, arg EnsurePlayerParams) (bool, error) {
	n, err := affected(q.db.ExecContext(ctx, ensurePlayer, arg.ID, arg.Username, arg.Rating, arg.Now, arg.Now))
	return n == 1, err
}

const getPlayer = `
SELECT id, username, rating, xp, level, is_vip, created_at, updated_at
FROM players WHERE id = ?
`

func (q *Queries) GetPlayer(ctx context.Context, id string) (Player, error) {
	row := q.db.QueryRowContext(ctx, getPlayer, id)
	var i Player
	err := row.Scan(&i.ID, &i.Username, &i.Rating, &i.Xp, &i.Level, &i.IsVip, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updatePlayerProgress = `
UPDATE players SET rating = ?, xp = ?, level = ?, updated_at = ? WHERE id = ?
`

type UpdatePlayerProgressParams struct {
	Rating    int64
	Xp        int64
	Level     int64
	UpdatedAt time.Time
	ID        string
}

func (q *Queries) UpdatePlayerProgress(ctx context.Context, arg UpdatePlayerProgressParams) error {
	_, err := q.db.ExecContext(ctx, updatePlayerProgress, arg.Rating, arg.Xp, arg.Level, arg.UpdatedAt, arg.ID)
	return err
}

const setPlayerVip = `
UPDATE players SET is_vip = ?, updated_at = ? WHERE id = ?
`

func (q *Queries) SetPlayerVip(ctx context.Context, id string, vip bool, now time.Time) (int64, error) {
	return affected(q.db.ExecContext(ctx, setPlayerVip, vip, now, id))
}
