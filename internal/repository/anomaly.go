package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"matchcore/internal/db"
	"matchcore/internal/domain"
	"matchcore/internal/events"

	"github.com/rs/zerolog"
)

type AnomalyRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewAnomalyRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *AnomalyRepository {
	return &AnomalyRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// FlagClientAnomaly writes the flag and its ac.flagged event in one transaction.
func (r *AnomalyRepository) FlagClientAnomaly(ctx context.Context, userID, matchID string, score float64) (*domain.AnomalyFlag, error) {
	var flag *domain.AnomalyFlag
	err := inTx(ctx, r.db, r.queries, func(_ *sql.Tx, qtx *db.Queries) error {
		ts := now()
		f, err := insertFlag(ctx, qtx, userID, matchID, score, domain.FlagClientAnomaly)
		if err != nil {
			return err
		}
		flag = f
		return enqueue(ctx, qtx, events.AntiCheatFlagged{UserID: userID, MatchID: matchID, Score: score}, ts)
	})
	if err != nil {
		return nil, err
	}
	return flag, nil
}

func (r *AnomalyRepository) Flags(ctx context.Context, userID string) ([]domain.AnomalyFlag, error) {
	rows, err := r.queries.ListAnomalyFlags(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags for %s: %w", userID, err)
	}
	out := make([]domain.AnomalyFlag, len(rows))
	for i, f := range rows {
		out[i] = domain.AnomalyFlag{
			ID:        f.ID,
			UserID:    f.UserID,
			MatchID:   nullable(f.MatchID),
			Score:     f.Score,
			Label:     f.Label,
			CreatedAt: f.CreatedAt,
		}
	}
	return out, nil
}

func (r *AnomalyRepository) SmurfScore(ctx context.Context, userID string) (*domain.SmurfScore, error) {
	s, err := r.queries.GetSmurfScore(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get smurf score for %s: %w", userID, err)
	}
	return &domain.SmurfScore{UserID: s.UserID, Score: s.Score, MatchID: s.MatchID, LastEvaluated: s.LastEvaluated}, nil
}

func insertFlag(ctx context.Context, qtx *db.Queries, userID, matchID string, score float64, label string) (*domain.AnomalyFlag, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	ts := now()
	err = qtx.InsertAnomalyFlag(ctx, db.AnomalyFlag{
		ID:        id,
		UserID:    userID,
		MatchID:   db.NullString(matchID),
		Score:     score,
		Label:     label,
		CreatedAt: ts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s flag for %s: %w", label, userID, err)
	}

	flag := &domain.AnomalyFlag{ID: id, UserID: userID, Score: score, Label: label, CreatedAt: ts}
	if matchID != "" {
		flag.MatchID = &matchID
	}
	return flag, nil
}
