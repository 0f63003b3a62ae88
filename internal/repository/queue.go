package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"matchcore/internal/db"
	"matchcore/internal/domain"
	"matchcore/internal/failure"

	"github.com/rs/zerolog"
)

type QueueRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewQueueRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *QueueRepository {
	return &QueueRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Join creates a WAITING ticket rated at the player's current rating.
func (r *QueueRepository) Join(ctx context.Context, userID, ladder, region string) (*domain.QueueTicket, error) {
	var ticket *domain.QueueTicket
	err := inTx(ctx, r.db, r.queries, func(_ *sql.Tx, qtx *db.Queries) error {
		p, err := qtx.GetPlayer(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPlayerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get player %s: %w", userID, err)
		}

		_, err = qtx.GetWaitingTicketByUser(ctx, userID)
		if err == nil {
			return domain.ErrAlreadyQueued
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check queue for %s: %w", userID, err)
		}

		id, err := newID()
		if err != nil {
			return err
		}
		ts := now()
		err = qtx.InsertTicket(ctx, db.InsertTicketParams{
			ID:           id,
			UserID:       userID,
			Ladder:       ladder,
			Region:       region,
			RatingAtJoin: p.Rating,
			JoinedAt:     ts,
		})
		if failure.IsConstraint(err) {
			return domain.ErrAlreadyQueued
		}
		if err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}

		ticket = &domain.QueueTicket{
			ID:           id,
			UserID:       userID,
			Ladder:       ladder,
			Region:       region,
			RatingAtJoin: int(p.Rating),
			Status:       domain.TicketWaiting,
			JoinedAt:     ts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Leave cancels the user's WAITING ticket and reports whether one existed.
func (r *QueueRepository) Leave(ctx context.Context, userID string) (bool, error) {
	n, err := r.queries.CancelWaitingTickets(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to leave queue: %w", err)
	}
	return n > 0, nil
}

// Status returns the user's latest ticket and, while WAITING, its 1-based
// position in its pool. Position is 0 for non-waiting tickets.
func (r *QueueRepository) Status(ctx context.Context, userID string) (*domain.QueueTicket, int, error) {
	t, err := r.queries.GetLatestTicketByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get ticket: %w", err)
	}

	ticket := toTicket(t)
	if ticket.Status != domain.TicketWaiting {
		return ticket, 0, nil
	}

	ahead, err := r.queries.CountTicketsAhead(ctx, db.CountTicketsAheadParams{
		Ladder:   t.Ladder,
		Region:   t.Region,
		JoinedAt: t.JoinedAt,
		ID:       t.ID,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count queue position: %w", err)
	}
	return ticket, int(ahead) + 1, nil
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*domain.QueueTicket, error) {
	t, err := r.queries.GetTicket(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", id, err)
	}
	return toTicket(t), nil
}

func (r *QueueRepository) CountWaiting(ctx context.Context, ladder, region string) (int, error) {
	n, err := r.queries.CountWaiting(ctx, ladder, region)
	if err != nil {
		return 0, fmt.Errorf("failed to count waiting tickets: %w", err)
	}
	return int(n), nil
}

func toTicket(t db.QueueTicket) *domain.QueueTicket {
	return &domain.QueueTicket{
		ID:           t.ID,
		UserID:       t.UserID,
		Ladder:       t.Ladder,
		Region:       t.Region,
		RatingAtJoin: int(t.RatingAtJoin),
		Status:       domain.TicketStatus(t.Status),
		JoinedAt:     t.JoinedAt,
		MatchID:      nullable(t.MatchID),
	}
}
