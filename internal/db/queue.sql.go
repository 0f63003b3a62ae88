package db

import (
	"context"
	"time"
)

const insertTicket = `
INSERT INTO queue_tickets (id, user_id, ladder, region, rating_at_join, status, joined_at)
VALUES (?, ?, ?, ?, ?, 'WAITING', ?)
`

type InsertTicketParams struct {
	ID           string
	UserID       string
	Ladder       string
	Region       string
	RatingAtJoin int64
	JoinedAt     time.Time
}

func (q *Queries) InsertTicket(ctx context.Context, arg InsertTicketParams) error {
	_, err := q.db.ExecContext(ctx, insertTicket,
		arg.ID, arg.UserID, arg.Ladder, arg.Region, arg.RatingAtJoin, arg.JoinedAt)
	return err
}

const ticketColumns = `id, user_id, ladder, region, rating_at_join, status, joined_at, match_id`

func scanTicket(row interface{ Scan(...any) error }) (QueueTicket, error) {
	var i QueueTicket
	err := row.Scan(&i.ID, &i.UserID, &i.Ladder, &i.Region, &i.RatingAtJoin, &i.Status, &i.JoinedAt, &i.MatchID)
	return i, err
}

const getWaitingTicketByUser = `
SELECT ` + ticketColumns + ` FROM queue_tickets WHERE user_id = ? AND status = 'WAITING'
`

func (q *Queries) GetWaitingTicketByUser(ctx context.Context, userID string) (QueueTicket, error) {
	return scanTicket(q.db.QueryRowContext(ctx, getWaitingTicketByUser, userID))
}

const getLatestTicketByUser = `
SELECT ` + ticketColumns + ` FROM queue_tickets WHERE user_id = ?
ORDER BY joined_at DESC, id DESC LIMIT 1
`

func (q *Queries) GetLatestTicketByUser(ctx context.Context, userID string) (QueueTicket, error) {
	return scanTicket(q.db.QueryRowContext(ctx, getLatestTicketByUser, userID))
}

const getTicket = `
SELECT ` + ticketColumns + ` FROM queue_tickets WHERE id = ?
`

func (q *Queries) GetTicket(ctx context.Context, id string) (QueueTicket, error) {
	return scanTicket(q.db.QueryRowContext(ctx, getTicket, id))
}

const cancelWaitingTickets = `
UPDATE queue_tickets SET status = 'CANCELLED' WHERE user_id = ? AND status = 'WAITING'
`

func (q *Queries) CancelWaitingTickets(ctx context.Context, userID string) (int64, error) {
	return affected(q.db.ExecContext(ctx, cancelWaitingTickets, userID))
}

const countTicketsAhead = `
SELECT COUNT(*) FROM queue_tickets
WHERE ladder = ? AND region = ? AND status = 'WAITING'
  AND (joined_at < ? OR (joined_at = ? AND id < ?))
`

type CountTicketsAheadParams struct {
	Ladder   string
	Region   string
	JoinedAt time.Time
	ID       string
}

func (q *Queries) CountTicketsAhead(ctx context.Context, arg CountTicketsAheadParams) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTicketsAhead,
		arg.Ladder, arg.Region, arg.JoinedAt, arg.JoinedAt, arg.ID).Scan(&n)
	return n, err
}

const listWaitingCandidates = `
SELECT t.id, t.user_id, p.rating, p.is_vip, t.joined_at
FROM queue_tickets t
JOIN players p ON p.id = t.user_id
WHERE t.ladder = ? AND t.region = ? AND t.status = 'WAITING'
ORDER BY t.joined_at, t.id
LIMIT ?
`

type ListWaitingCandidatesParams struct {
	Ladder string
	Region string
	Limit  int64
}

func (q *Queries) ListWaitingCandidates(ctx context.Context, arg ListWaitingCandidatesParams) ([]Candidate, error) {
	rows, err := q.db.QueryContext(ctx, listWaitingCandidates, arg.Ladder, arg.Region, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Candidate
	for rows.Next() {
		var i Candidate
		if err := rows.Scan(&i.TicketID, &i.UserID, &i.Rating, &i.IsVip, &i.JoinedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countWaiting = `
SELECT COUNT(*) FROM queue_tickets WHERE ladder = ? AND region = ? AND status = 'WAITING'
`

func (q *Queries) CountWaiting(ctx context.Context, ladder, region string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countWaiting, ladder, region).Scan(&n)
	return n, err
}

const markTicketMatched = `
UPDATE queue_tickets SET status = 'MATCHED', match_id = ? WHERE id = ? AND status = 'WAITING'
`

func (q *Queries) MarkTicketMatched(ctx context.Context, ticketID, matchID string) (int64, error) {
	return affected(q.db.ExecContext(ctx, markTicketMatched, matchID, ticketID))
}
