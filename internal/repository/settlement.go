package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"matchcore/internal/constants"
	"matchcore/internal/db"
	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/scoring"

	"github.com/rs/zerolog"
)

type SettlementRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewSettlementRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SettlementRepository {
	return &SettlementRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

type SettlementResult struct {
	MatchID    string
	WinnerTeam *int
	Settled    []domain.PlayerSettlement
	Skipped    int
	Failed     []string
	Finished   bool
	SmurfFlags int
}

// errSavepoint aborts the whole transaction: once a savepoint cannot be
// rolled back the player's partial writes cannot be isolated.
var errSavepoint = errors.New("savepoint failure")

// Settle applies a completed match exactly once. Match status and the
// (match, player) settlement rows are the idempotency keys: a FINISHED match
// is a duplicate, and players already settled by an earlier partial attempt
// are skipped. Each player is applied inside its own savepoint. When any
// player fails, the others are committed, the match stays ACTIVE and a
// transient error asks for redelivery.
func (r *SettlementRepository) Settle(ctx context.Context, report events.MatchCompleted) (*SettlementResult, error) {
	result := &SettlementResult{MatchID: report.MatchID}

	err := inTx(ctx, r.db, r.queries, func(tx *sql.Tx, qtx *db.Queries) error {
		m, err := qtx.GetMatch(ctx, report.MatchID)
		if errors.Is(err, sql.ErrNoRows) {
			return failure.Validation("unknown match %s", report.MatchID)
		}
		if err != nil {
			return fmt.Errorf("failed to get match %s: %w", report.MatchID, err)
		}

		switch domain.MatchStatus(m.Status) {
		case domain.MatchFinished:
			return failure.Duplicate("match %s already settled", m.ID)
		case domain.MatchCancelled:
			return failure.Business("match %s was cancelled", m.ID)
		case domain.MatchPending, domain.MatchProvisioning:
			return failure.Transient(nil, "match %s is %s, not yet active", m.ID, m.Status)
		}

		roster, err := qtx.ListMatchPlayers(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("failed to list roster for %s: %w", m.ID, err)
		}
		teamOf := make(map[string]int64, len(roster))
		for _, p := range roster {
			teamOf[p.UserID] = p.Team
		}
		for _, s := range report.Stats {
			team, ok := teamOf[s.UserID]
			if !ok {
				return failure.Validation("player %s is not in match %s", s.UserID, m.ID)
			}
			if s.Team != 0 && int64(s.Team) != team {
				return failure.Validation("player %s reported on team %d, rostered on %d", s.UserID, s.Team, team)
			}
		}

		winner, won := resolveWinner(report, teamOf)
		if winner != nil {
			w := int(*winner)
			result.WinnerTeam = &w
		}

		stats := slices.Clone(report.Stats)
		slices.SortFunc(stats, func(a, b events.PlayerStat) int { return strings.Compare(a.UserID, b.UserID) })

		ts := now()
		for _, s := range stats {
			_, err := qtx.GetSettlement(ctx, m.ID, s.UserID)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check settlement for %s: %w", s.UserID, err)
			}

			ps, flagged, err := r.settlePlayer(ctx, tx, qtx, m.ID, s, teamOf[s.UserID], won(s), ts)
			if errors.Is(err, errSavepoint) {
				return err
			}
			if err != nil {
				r.logger.Warn().Err(err).
					Str("match_id", m.ID).
					Str("user_id", s.UserID).
					Msg("player settlement rolled back")
				result.Failed = append(result.Failed, s.UserID)
				continue
			}
			if flagged {
				result.SmurfFlags++
			}
			result.Settled = append(result.Settled, ps)
		}

		if len(result.Failed) > 0 {
			return nil
		}

		n, err := qtx.FinishMatch(ctx, db.FinishMatchParams{WinnerTeam: winner, EndedAt: ts, ID: m.ID})
		if err != nil {
			return fmt.Errorf("failed to finish match %s: %w", m.ID, err)
		}
		if n == 0 {
			return failure.Transient(nil, "match %s changed status during settlement", m.ID)
		}
		result.Finished = true
		return enqueue(ctx, qtx, events.WalletReward{MatchID: m.ID}, ts)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Failed) > 0 {
		return result, failure.Transient(nil, "%d of %d players failed to settle in match %s",
			len(result.Failed), len(report.Stats), report.MatchID)
	}
	return result, nil
}

// resolveWinner prefers the reported winning team. Without one, each
// player's own isWinner flag decides, and the winning team is taken from the
// first flagged winner.
func resolveWinner(report events.MatchCompleted, teamOf map[string]int64) (*int64, func(events.PlayerStat) bool) {
	if report.WinnerTeam != nil {
		w := int64(*report.WinnerTeam)
		return &w, func(s events.PlayerStat) bool { return teamOf[s.UserID] == w }
	}

	var winner *int64
	for _, s := range report.Stats {
		if s.IsWinner {
			w := teamOf[s.UserID]
			winner = &w
			break
		}
	}
	return winner, func(s events.PlayerStat) bool { return s.IsWinner }
}

func (r *SettlementRepository) settlePlayer(
	ctx context.Context,
	tx *sql.Tx,
	qtx *db.Queries,
	matchID string,
	stat events.PlayerStat,
	team int64,
	won bool,
	ts time.Time,
) (ps domain.PlayerSettlement, flagged bool, err error) {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT settle_player"); err != nil {
		return ps, false, fmt.Errorf("%w: %v", errSavepoint, err)
	}
	defer func() {
		if err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT settle_player"); rbErr != nil {
				err = fmt.Errorf("%w: rollback: %v (after %v)", errSavepoint, rbErr, err)
				return
			}
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT settle_player"); relErr != nil {
			err = fmt.Errorf("%w: release: %v", errSavepoint, relErr)
		}
	}()

	row := db.MatchPlayerStat{
		MatchID:   matchID,
		UserID:    stat.UserID,
		Team:      team,
		Kills:     int64(stat.Kills),
		Deaths:    int64(stat.Deaths),
		Assists:   int64(stat.Assists),
		Headshots: int64(stat.Headshots),
		Mvps:      int64(stat.MVPs),
		Clutches:  int64(stat.Clutches),
		IsWinner:  won,
	}
	if _, err := qtx.RecordMatchPlayerStat(ctx, row); err != nil {
		return ps, false, fmt.Errorf("failed to record stats: %w", err)
	}

	p, err := qtx.GetPlayer(ctx, stat.UserID)
	if err != nil {
		return ps, false, fmt.Errorf("failed to load player: %w", err)
	}

	rating := scoring.ApplyRating(int(p.Rating), won, p.IsVip)
	xpGain := scoring.XPGain(won, p.IsVip)
	xp := int(p.Xp) + xpGain
	err = qtx.UpdatePlayerProgress(ctx, db.UpdatePlayerProgressParams{
		Rating:    int64(rating),
		Xp:        int64(xp),
		Level:     int64(scoring.Level(int(p.Level), xp)),
		UpdatedAt: ts,
		ID:        p.ID,
	})
	if err != nil {
		return ps, false, fmt.Errorf("failed to update progress: %w", err)
	}

	reward := scoring.Reward(won)
	if _, err := credit(ctx, qtx, p.ID, reward, domain.LedgerEarn, constants.LedgerReasonMatchResult, matchID, ts); err != nil {
		return ps, false, err
	}

	smurf := scoring.SmurfScore(toStat(row))
	err = qtx.UpsertSmurfScore(ctx, db.SmurfScore{UserID: p.ID, Score: smurf, MatchID: matchID, LastEvaluated: ts})
	if err != nil {
		return ps, false, fmt.Errorf("failed to upsert smurf score: %w", err)
	}
	if scoring.IsSmurfRisk(smurf) {
		if _, err := insertFlag(ctx, qtx, p.ID, matchID, smurf, domain.FlagSmurfRisk); err != nil {
			return ps, false, err
		}
		flagged = true
	}

	ps = domain.PlayerSettlement{
		MatchID:      matchID,
		UserID:       p.ID,
		RatingBefore: int(p.Rating),
		RatingAfter:  rating,
		XPGained:     xpGain,
		Reward:       reward,
		SmurfScore:   smurf,
	}
	err = qtx.InsertSettlement(ctx, db.Settlement{
		MatchID:      matchID,
		UserID:       p.ID,
		RatingBefore: p.Rating,
		RatingAfter:  int64(rating),
		XpGained:     int64(xpGain),
		Reward:       reward,
		SmurfScore:   smurf,
		CreatedAt:    ts,
	})
	if err != nil {
		return ps, false, fmt.Errorf("failed to record settlement: %w", err)
	}
	return ps, flagged, nil
}
