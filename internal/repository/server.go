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

type ServerRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewServerRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *ServerRepository {
	return &ServerRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Attach records inst as the server of a PROVISIONING match and enqueues
// server.spawned in the same transaction. It reports false, writing nothing,
// when the match is no longer PROVISIONING.
func (r *ServerRepository) Attach(ctx context.Context, inst *domain.ServerInstance) (bool, error) {
	if inst.MatchID == nil {
		return false, fmt.Errorf("server instance %s has no match", inst.ID)
	}
	matchID := *inst.MatchID

	var attached bool
	err := inTx(ctx, r.db, r.queries, func(_ *sql.Tx, qtx *db.Queries) error {
		if err := r.insert(ctx, qtx, inst); err != nil {
			return err
		}

		n, err := qtx.AttachServer(ctx, matchID, inst.ID)
		if err != nil {
			return fmt.Errorf("failed to attach server to match %s: %w", matchID, err)
		}
		if n == 0 {
			return errNotProvisioning
		}

		attached = true
		return enqueue(ctx, qtx, events.ServerSpawned{ServerInstanceID: inst.ID, MatchID: matchID}, inst.CreatedAt)
	})
	if errors.Is(err, errNotProvisioning) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return attached, nil
}

var errNotProvisioning = errors.New("match not provisioning")

// Create records an instance with no match attached.
func (r *ServerRepository) Create(ctx context.Context, inst *domain.ServerInstance) error {
	return r.insert(ctx, r.queries, inst)
}

func (r *ServerRepository) insert(ctx context.Context, q *db.Queries, inst *domain.ServerInstance) error {
	ts := now()
	if inst.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		inst.ID = id
	}
	inst.CreatedAt, inst.UpdatedAt = ts, ts

	var matchID sql.NullString
	if inst.MatchID != nil {
		matchID = db.NullString(*inst.MatchID)
	}
	err := q.InsertServerInstance(ctx, db.ServerInstance{
		ID:                 inst.ID,
		Provider:           inst.Provider,
		ProviderInstanceID: inst.ProviderInstanceID,
		MatchID:            matchID,
		Region:             inst.Region,
		Ip:                 inst.IP,
		Port:               int64(inst.Port),
		Status:             string(inst.Status),
		CreatedAt:          ts,
		UpdatedAt:          ts,
	})
	if err != nil {
		return fmt.Errorf("failed to insert server instance: %w", err)
	}
	return nil
}

func (r *ServerRepository) Get(ctx context.Context, id string) (*domain.ServerInstance, error) {
	s, err := r.queries.GetServerInstance(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrServerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server instance %s: %w", id, err)
	}
	return &domain.ServerInstance{
		ID:                 s.ID,
		Provider:           s.Provider,
		ProviderInstanceID: s.ProviderInstanceID,
		MatchID:            nullable(s.MatchID),
		Region:             s.Region,
		IP:                 s.Ip,
		Port:               int(s.Port),
		Status:             domain.ServerStatus(s.Status),
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

// SetStatus reports whether the status changed.
func (r *ServerRepository) SetStatus(ctx context.Context, id string, status domain.ServerStatus) (bool, error) {
	n, err := r.queries.UpdateServerStatus(ctx, id, string(status), now())
	if err != nil {
		return false, fmt.Errorf("failed to update server %s: %w", id, err)
	}
	return n == 1, nil
}
