package db

import (
	"context"
	"time"
)

const insertOutboxEvent = `
INSERT INTO outbox_events (topic, payload, created_at) VALUES (?, ?, ?)
`

func (q *Queries) InsertOutboxEvent(ctx context.Context, topic string, payload []byte, now time.Time) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent, topic, payload, now)
	return err
}

// The lease keeps two relays from publishing the same row concurrently; an
// expired lease makes the row claimable again.
const claimOutboxEvents = `
UPDATE outbox_events SET locked_until = ?
WHERE id IN (
    SELECT id FROM outbox_events
    WHERE published_at IS NULL AND (locked_until IS NULL OR locked_until < ?)
    ORDER BY id
    LIMIT ?
)
RETURNING id, topic, payload, created_at
`

type ClaimOutboxEventsParams struct {
	LockedUntil time.Time
	Now         time.Time
	Limit       int64
}

func (q *Queries) ClaimOutboxEvents(ctx context.Context, arg ClaimOutboxEventsParams) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, claimOutboxEvents, arg.LockedUntil, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OutboxEvent
	for rows.Next() {
		var i OutboxEvent
		if err := rows.Scan(&i.ID, &i.Topic, &i.Payload, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const markOutboxPublished = `
UPDATE outbox_events SET published_at = ?, locked_until = NULL WHERE id = ?
`

func (q *Queries) MarkOutboxPublished(ctx context.Context, id int64, now time.Time) error {
	_, err := q.db.ExecContext(ctx, markOutboxPublished, now, id)
	return err
}

const releaseOutboxEvent = `
UPDATE outbox_events SET locked_until = NULL WHERE id = ? AND published_at IS NULL
`

func (q *Queries) ReleaseOutboxEvent(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, releaseOutboxEvent, id)
	return err
}

const listPendingOutbox = `
SELECT id, topic, payload, created_at FROM outbox_events
WHERE published_at IS NULL ORDER BY id
`

func (q *Queries) ListPendingOutbox(ctx context.Context) ([]OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, listPendingOutbox)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OutboxEvent
	for rows.Next() {
		var i OutboxEvent
		if err := rows.Scan(&i.ID, &i.Topic, &i.Payload, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
