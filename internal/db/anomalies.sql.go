package db

import (
	"context"
	"database/sql"
	"time"
)

const insertAnomalyFlag = `
INSERT INTO anomaly_flags (id, user_id, match_id, score, label, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertAnomalyFlag(ctx context.Context, arg AnomalyFlag) error {
	_, err := q.db.ExecContext(ctx, insertAnomalyFlag,
		arg.ID, arg.UserID, arg.MatchID, arg.Score, arg.Label, arg.CreatedAt)
	return err
}

const listAnomalyFlags = `
SELECT id, user_id, match_id, score, label, created_at
FROM anomaly_flags WHERE user_id = ?
ORDER BY created_at, id
`

func (q *Queries) ListAnomalyFlags(ctx context.Context, userID string) ([]AnomalyFlag, error) {
	rows, err := q.db.QueryContext(ctx, listAnomalyFlags, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnomalyFlag
	for rows.Next() {
		var i AnomalyFlag
		if err := rows.Scan(&i.ID, &i.UserID, &i.MatchID, &i.Score, &i.Label, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertSmurfScore = `
INSERT INTO smurf_scores (user_id, score, match_id, last_evaluated)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    score = excluded.score,
    match_id = excluded.match_id,
    last_evaluated = excluded.last_evaluated
`

func (q *Queries) UpsertSmurfScore(ctx context.Context, arg SmurfScore) error {
	_, err := q.db.ExecContext(ctx, upsertSmurfScore, arg.UserID, arg.Score, arg.MatchID, arg.LastEvaluated)
	return err
}

const getSmurfScore = `
SELECT user_id, score, match_id, last_evaluated FROM smurf_scores WHERE user_id = ?
`

func (q *Queries) GetSmurfScore(ctx context.Context, userID string) (SmurfScore, error) {
	var i SmurfScore
	err := q.db.QueryRowContext(ctx, getSmurfScore, userID).Scan(&i.UserID, &i.Score, &i.MatchID, &i.LastEvaluated)
	return i, err
}

func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func NullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
