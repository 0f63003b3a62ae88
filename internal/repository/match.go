package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchcore/internal/constants"
	"matchcore/internal/db"
	"matchcore/internal/domain"
	"matchcore/internal/events"

	"github.com/rs/zerolog"
)

type MatchRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// BalanceFunc splits exactly constants.MatchSize candidates into two teams.
type BalanceFunc func(candidates []domain.Candidate) (domain.Teams, error)

// Form selects the oldest MatchSize WAITING tickets of one pool and, in the
// same transaction, creates the match, its zero stat rows, flips the tickets
// to MATCHED and enqueues the spawn request. Any error leaves every ticket
// WAITING.
func (r *MatchRepository) Form(ctx context.Context, ladder, region, mapName string, balance BalanceFunc) (*domain.Match, error) {
	var match *domain.Match
	err := inTx(ctx, r.db, r.queries, func(_ *sql.Tx, qtx *db.Queries) error {
		rows, err := qtx.ListWaitingCandidates(ctx, db.ListWaitingCandidatesParams{
			Ladder: ladder,
			Region: region,
			Limit:  constants.MatchSize,
		})
		if err != nil {
			return fmt.Errorf("failed to list waiting tickets: %w", err)
		}
		if len(rows) < constants.MatchSize {
			return domain.ErrNotEnoughPlayers
		}

		candidates := make([]domain.Candidate, len(rows))
		for i, c := range rows {
			candidates[i] = domain.Candidate{
				TicketID: c.TicketID,
				UserID:   c.UserID,
				Rating:   int(c.Rating),
				IsVIP:    c.IsVip,
				JoinedAt: c.JoinedAt,
			}
		}

		teams, err := balance(candidates)
		if err != nil {
			return err
		}

		id, err := newID()
		if err != nil {
			return err
		}
		ts := now()
		err = qtx.InsertMatch(ctx, db.InsertMatchParams{
			ID:        id,
			Ladder:    ladder,
			Region:    region,
			Map:       mapName,
			StartedAt: ts,
		})
		if err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}

		for team, members := range map[int64][]domain.Candidate{1: teams.Team1, 2: teams.Team2} {
			for _, c := range members {
				if err := qtx.InsertMatchPlayer(ctx, id, c.UserID, team); err != nil {
					return fmt.Errorf("failed to insert match player %s: %w", c.UserID, err)
				}
				n, err := qtx.MarkTicketMatched(ctx, c.TicketID, id)
				if err != nil {
					return fmt.Errorf("failed to mark ticket %s matched: %w", c.TicketID, err)
				}
				if n == 0 {
					return domain.ErrTicketConflict
				}
			}
		}

		if err := enqueue(ctx, qtx, events.SpawnRequested{MatchID: id}, ts); err != nil {
			return err
		}

		match = &domain.Match{
			ID:        id,
			Ladder:    ladder,
			Region:    region,
			Map:       mapName,
			Status:    domain.MatchPending,
			StartedAt: ts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (r *MatchRepository) Get(ctx context.Context, id string) (*domain.Match, error) {
	m, err := r.queries.GetMatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match %s: %w", id, err)
	}
	return toMatch(m), nil
}

func (r *MatchRepository) Players(ctx context.Context, id string) ([]domain.MatchPlayerStat, error) {
	rows, err := r.queries.ListMatchPlayers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for match %s: %w", id, err)
	}
	out := make([]domain.MatchPlayerStat, len(rows))
	for i, s := range rows {
		out[i] = toStat(s)
	}
	return out, nil
}

// BeginProvisioning moves a PENDING match to PROVISIONING. It reports false
// when the match was not PENDING.
func (r *MatchRepository) BeginProvisioning(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := r.queries.BeginProvisioning(ctx, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to begin provisioning %s: %w", id, err)
	}
	return n == 1, nil
}

// ResetProvisioning returns a PROVISIONING match with no server back to
// PENDING so a redelivered spawn request can start over.
func (r *MatchRepository) ResetProvisioning(ctx context.Context, id string) (bool, error) {
	n, err := r.queries.ResetProvisioning(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to reset provisioning %s: %w", id, err)
	}
	return n == 1, nil
}

// Activate moves a PROVISIONING match whose server is serverInstanceID to ACTIVE.
func (r *MatchRepository) Activate(ctx context.Context, id, serverInstanceID string) (bool, error) {
	n, err := r.queries.ActivateMatch(ctx, id, serverInstanceID)
	if err != nil {
		return false, fmt.Errorf("failed to activate match %s: %w", id, err)
	}
	return n == 1, nil
}

// Cancel moves a PENDING or PROVISIONING match to CANCELLED.
func (r *MatchRepository) Cancel(ctx context.Context, id string) (bool, error) {
	n, err := r.queries.CancelMatch(ctx, id, now())
	if err != nil {
		return false, fmt.Errorf("failed to cancel match %s: %w", id, err)
	}
	return n == 1, nil
}

// CancelStaleProvisioning cancels matches stuck in PROVISIONING since before
// and returns their ids.
func (r *MatchRepository) CancelStaleProvisioning(ctx context.Context, before time.Time) ([]string, error) {
	ids, err := r.queries.ListStaleProvisioning(ctx, before, constants.DBBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale provisioning matches: %w", err)
	}

	var cancelled []string
	for _, id := range ids {
		n, err := r.queries.CancelStaleProvisioning(ctx, id, before, now())
		if err != nil {
			return cancelled, fmt.Errorf("failed to cancel stale match %s: %w", id, err)
		}
		if n == 1 {
			cancelled = append(cancelled, id)
		}
	}
	return cancelled, nil
}

func toMatch(m db.Match) *domain.Match {
	out := &domain.Match{
		ID:                    m.ID,
		Ladder:                m.Ladder,
		Region:                m.Region,
		Map:                   m.Map,
		ServerInstanceID:      nullable(m.ServerInstanceID),
		Status:                domain.MatchStatus(m.Status),
		StartedAt:             m.StartedAt,
		ProvisioningStartedAt: nullableTime(m.ProvisioningStartedAt),
		EndedAt:               nullableTime(m.EndedAt),
	}
	if m.WinnerTeam.Valid {
		w := int(m.WinnerTeam.Int64)
		out.WinnerTeam = &w
	}
	return out
}

func toStat(s db.MatchPlayerStat) domain.MatchPlayerStat {
	return domain.MatchPlayerStat{
		MatchID:   s.MatchID,
		UserID:    s.UserID,
		Team:      int(s.Team),
		Kills:     int(s.Kills),
		Deaths:    int(s.Deaths),
		Assists:   int(s.Assists),
		Headshots: int(s.Headshots),
		MVPs:      int(s.Mvps),
		Clutches:  int(s.Clutches),
		IsWinner:  s.IsWinner,
	}
}
