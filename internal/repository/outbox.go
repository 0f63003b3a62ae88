package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"matchcore/internal/constants"
	"matchcore/internal/db"
	"matchcore/internal/events"

	"github.com/rs/zerolog"
)

type OutboxRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewOutboxRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *OutboxRepository {
	return &OutboxRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

type OutboxMessage struct {
	ID      int64
	Topic   string
	Payload []byte
}

// Enqueue writes a standalone event, for producers with no other state change.
func (r *OutboxRepository) Enqueue(ctx context.Context, evt events.Event) error {
	return enqueue(ctx, r.queries, evt, now())
}

// Claim leases up to constants.OutboxBatchSize unpublished rows, oldest first.
func (r *OutboxRepository) Claim(ctx context.Context) ([]OutboxMessage, error) {
	ts := now()
	rows, err := r.queries.ClaimOutboxEvents(ctx, db.ClaimOutboxEventsParams{
		LockedUntil: ts.Add(constants.OutboxLease),
		Now:         ts,
		Limit:       constants.OutboxBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	slices.SortFunc(rows, func(a, b db.OutboxEvent) int { return int(a.ID - b.ID) })

	out := make([]OutboxMessage, len(rows))
	for i, e := range rows {
		out[i] = OutboxMessage{ID: e.ID, Topic: e.Topic, Payload: e.Payload}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id int64) error {
	if err := r.queries.MarkOutboxPublished(ctx, id, now()); err != nil {
		return fmt.Errorf("failed to mark outbox event %d published: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) Release(ctx context.Context, id int64) error {
	if err := r.queries.ReleaseOutboxEvent(ctx, id); err != nil {
		return fmt.Errorf("failed to release outbox event %d: %w", id, err)
	}
	return nil
}

// Pending lists unpublished rows without leasing them.
func (r *OutboxRepository) Pending(ctx context.Context) ([]OutboxMessage, error) {
	rows, err := r.queries.ListPendingOutbox(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox events: %w", err)
	}
	out := make([]OutboxMessage, len(rows))
	for i, e := range rows {
		out[i] = OutboxMessage{ID: e.ID, Topic: e.Topic, Payload: e.Payload}
	}
	return out, nil
}
