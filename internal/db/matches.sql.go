package db

import (
	"context"
	"time"
)

const insertMatch = `
INSERT INTO matches (id, ladder, region, map, status, started_at)
VALUES (?, ?, ?, ?, 'PENDING', ?)
`

type InsertMatchParams struct {
	ID        string
	Ladder    string
	Region    string
	Map       string
	StartedAt time.Time
}

func (q *Queries) InsertMatch(ctx context.Context, arg InsertMatchParams) error {
	_, err := q.db.ExecContext(ctx, insertMatch, arg.ID, arg.Ladder, arg.Region, arg.Map, arg.StartedAt)
	return err
}

const matchColumns = `id, ladder, region, map, server_instance_id, status, winner_team, started_at, provisioning_started_at, ended_at`

func scanMatch(row interface{ Scan(...any) error }) (Match, error) {
	var i Match
	err := row.Scan(&i.ID, &i.Ladder, &i.Region, &i.Map, &i.ServerInstanceID, &i.Status,
		&i.WinnerTeam, &i.StartedAt, &i.ProvisioningStartedAt, &i.EndedAt)
	return i, err
}

const getMatch = `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`

func (q *Queries) GetMatch(ctx context.Context, id string) (Match, error) {
	return scanMatch(q.db.QueryRowContext(ctx, getMatch, id))
}

const beginProvisioning = `
UPDATE matches SET status = 'PROVISIONING', provisioning_started_at = ?
WHERE id = ? AND status = 'PENDING'
`

func (q *Queries) BeginProvisioning(ctx context.Context, id string, now time.Time) (int64, error) {
	return affected(q.db.ExecContext(ctx, beginProvisioning, now, id))
}

const resetProvisioning = `
UPDATE matches SET status = 'PENDING', provisioning_started_at = NULL
WHERE id = ? AND status = 'PROVISIONING' AND server_instance_id IS NULL
`

func (q *Queries) ResetProvisioning(ctx context.Context, id string) (int64, error) {
	return affected(q.db.ExecContext(ctx, resetProvisioning, id))
}

const attachServer = `
UPDATE matches SET server_instance_id = ? WHERE id = ? AND status = 'PROVISIONING'
`

func (q *Queries) AttachServer(ctx context.Context, matchID, serverInstanceID string) (int64, error) {
	return affected(q.db.ExecContext(ctx, attachServer, serverInstanceID, matchID))
}

const activateMatch = `
UPDATE matches SET status = 'ACTIVE'
WHERE id = ? AND status = 'PROVISIONING' AND server_instance_id = ?
`

func (q *Queries) ActivateMatch(ctx context.Context, matchID, serverInstanceID string) (int64, error) {
	return affected(q.db.ExecContext(ctx, activateMatch, matchID, serverInstanceID))
}

const cancelMatch = `
UPDATE matches SET status = 'CANCELLED', ended_at = ?
WHERE id = ? AND status IN ('PENDING', 'PROVISIONING')
`

func (q *Queries) CancelMatch(ctx context.Context, id string, now time.Time) (int64, error) {
	return affected(q.db.ExecContext(ctx, cancelMatch, now, id))
}

const cancelStaleProvisioning = `
UPDATE matches SET status = 'CANCELLED', ended_at = ?
WHERE id = ? AND status = 'PROVISIONING' AND provisioning_started_at < ?
`

func (q *Queries) CancelStaleProvisioning(ctx context.Context, id string, before, now time.Time) (int64, error) {
	return affected(q.db.ExecContext(ctx, cancelStaleProvisioning, now, id, before))
}

const listStaleProvisioning = `
SELECT id FROM matches
WHERE status = 'PROVISIONING' AND provisioning_started_at < ?
ORDER BY provisioning_started_at
LIMIT ?
`

func (q *Queries) ListStaleProvisioning(ctx context.Context, before time.Time, limit int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listStaleProvisioning, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const finishMatch = `
UPDATE matches SET status = 'FINISHED', winner_team = ?, ended_at = ?
WHERE id = ? AND status = 'ACTIVE'
`

type FinishMatchParams struct {
	WinnerTeam *int64
	EndedAt    time.Time
	ID         string
}

func (q *Queries) FinishMatch(ctx context.Context, arg FinishMatchParams) (int64, error) {
	return affected(q.db.ExecContext(ctx, finishMatch, arg.WinnerTeam, arg.EndedAt, arg.ID))
}

const insertMatchPlayer = `
INSERT INTO match_player_stats (match_id, user_id, team) VALUES (?, ?, ?)
`

func (q *Queries) InsertMatchPlayer(ctx context.Context, matchID, userID string, team int64) error {
	_, err := q.db.ExecContext(ctx, insertMatchPlayer, matchID, userID, team)
	return err
}

const listMatchPlayers = `
SELECT match_id, user_id, team, kills, deaths, assists, headshots, mvps, clutches, is_winner
FROM match_player_stats WHERE match_id = ? ORDER BY team, user_id
`

func (q *Queries) ListMatchPlayers(ctx context.Context, matchID string) ([]MatchPlayerStat, error) {
	rows, err := q.db.QueryContext(ctx, listMatchPlayers, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MatchPlayerStat
	for rows.Next() {
		var i MatchPlayerStat
		if err := rows.Scan(&i.MatchID, &i.UserID, &i.Team, &i.Kills, &i.Deaths, &i.Assists,
			&i.Headshots, &i.Mvps, &i.Clutches, &i.IsWinner); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const recordMatchPlayerStat = `
UPDATE match_player_stats
SET kills = ?, deaths = ?, assists = ?, headshots = ?, mvps = ?, clutches = ?, is_winner = ?
WHERE match_id = ? AND user_id = ?
`

func (q *Queries) RecordMatchPlayerStat(ctx context.Context, arg MatchPlayerStat) (int64, error) {
	return affected(q.db.ExecContext(ctx, recordMatchPlayerStat,
		arg.Kills, arg.Deaths, arg.Assists, arg.Headshots, arg.Mvps, arg.Clutches, arg.IsWinner,
		arg.MatchID, arg.UserID))
}

const getSettlement = `
SELECT match_id, user_id, rating_before, rating_after, xp_gained, reward, smurf_score, created_at
FROM settlements WHERE match_id = ? AND user_id = ?
`

func (q *Queries) GetSettlement(ctx context.Context, matchID, userID string) (Settlement, error) {
	var i Settlement
	err := q.db.QueryRowContext(ctx, getSettlement, matchID, userID).Scan(
		&i.MatchID, &i.UserID, &i.RatingBefore, &i.RatingAfter, &i.XpGained, &i.Reward, &i.SmurfScore, &i.CreatedAt)
	return i, err
}

const insertSettlement = `
INSERT INTO settlements (match_id, user_id, rating_before, rating_after, xp_gained, reward, smurf_score, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertSettlement(ctx context.Context, arg Settlement) error {
	_, err := q.db.ExecContext(ctx, insertSettlement,
		arg.MatchID, arg.UserID, arg.RatingBefore, arg.RatingAfter, arg.XpGained, arg.Reward, arg.SmurfScore, arg.CreatedAt)
	return err
}

const countSettlements = `SELECT COUNT(*) FROM settlements WHERE match_id = ?`

func (q *Queries) CountSettlements(ctx context.Context, matchID string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countSettlements, matchID).Scan(&n)
	return n, err
}
