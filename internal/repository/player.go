package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"matchcore/internal/constants"
	"matchcore/internal/db"
	"matchcore/internal/domain"

	"github.com/rs/zerolog"
)

type PlayerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *PlayerRepository) Create(ctx context.Context, player *domain.Player) error {
	ts := now()
	if player.Level == 0 {
		player.Level = 1
	}
	player.CreatedAt, player.UpdatedAt = ts, ts

	err := r.queries.CreatePlayer(ctx, db.CreatePlayerParams{
		ID:        player.ID,
		Username:  player.Username,
		Rating:    int64(player.Rating),
		Xp:        int64(player.XP),
		Level:     int64(player.Level),
		IsVip:     player.IsVIP,
		CreatedAt: ts,
		UpdatedAt: ts,
	})
	if err != nil {
		return fmt.Errorf("failed to create player %s: %w", player.ID, err)
	}
	return nil
}

// Ensure creates a default player and wallet for id if none exists.
func (r *PlayerRepository) Ensure(ctx context.Context, id string) (bool, error) {
	var created bool
	err := inTx(ctx, r.db, r.queries, func(_ *sql.Tx, qtx *db.Queries) error {
		ts := now()
		var err error
		created, err = qtx.EnsurePlayer(ctx, db.EnsurePlayerParams{
			ID:       id,
			Username: id,
			Rating:   constants.DefaultRating,
			Now:      ts,
		})
		if err != nil {
			return fmt.Errorf("failed to ensure player %s: %w", id, err)
		}
		_, err = getOrCreateWallet(ctx, qtx, id, ts)
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		r.logger.Info().Str("user_id", id).Msg("player created")
	}
	return created, nil
}

func (r *PlayerRepository) Get(ctx context.Context, id string) (*domain.Player, error) {
	p, err := r.queries.GetPlayer(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player %s: %w", id, err)
	}
	return toPlayer(p), nil
}

func (r *PlayerRepository) SetVIP(ctx context.Context, id string, vip bool) error {
	n, err := r.queries.SetPlayerVip(ctx, id, vip, now())
	if err != nil {
		return fmt.Errorf("failed to set vip for %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func toPlayer(p db.Player) *domain.Player {
	return &domain.Player{
		ID:        p.ID,
		Username:  p.Username,
		Rating:    int(p.Rating),
		XP:        int(p.Xp),
		Level:     int(p.Level),
		IsVIP:     p.IsVip,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
