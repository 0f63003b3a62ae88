package service

import (
	"context"
	"errors"
	"slices"

	"matchcore/internal/config"
	"matchcore/internal/domain"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
)

type QueueService struct {
	queue   *repository.QueueRepository
	pools   []config.Pool
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewQueueService(cfg *config.Config, queue *repository.QueueRepository, m *metrics.Metrics, logger zerolog.Logger) *QueueService {
	return &QueueService{queue: queue, pools: cfg.MatchPools, metrics: m, logger: logger}
}

func (s *QueueService) Join(ctx context.Context, userID, ladder, region string) (*domain.QueueTicket, error) {
	if userID == "" {
		return nil, failure.Validation("userId is required")
	}
	if !slices.Contains(s.pools, config.Pool{Ladder: ladder, Region: region}) {
		return nil, failure.Validation("no match pool %s:%s", ladder, region)
	}

	ticket, err := s.queue.Join(ctx, userID, ladder, region)
	switch {
	case errors.Is(err, domain.ErrPlayerNotFound):
		s.metrics.QueueOperations.WithLabelValues("join", "unknown_player").Inc()
		return nil, failure.Validation("unknown player %s", userID)
	case errors.Is(err, domain.ErrAlreadyQueued):
		s.metrics.QueueOperations.WithLabelValues("join", "already_queued").Inc()
		return nil, failure.Business("player %s is already queued", userID)
	case err != nil:
		s.metrics.QueueOperations.WithLabelValues("join", "error").Inc()
		return nil, failure.Transient(err, "failed to join queue")
	}

	s.metrics.QueueOperations.WithLabelValues("join", "ok").Inc()
	s.logger.Info().
		Str("user_id", userID).
		Str("ticket_id", ticket.ID).
		Str("pool", ladder+":"+region).
		Msg("player queued")
	return ticket, nil
}

// Leave cancels the user's waiting ticket. Leaving with no waiting ticket is
// not an error.
func (s *QueueService) Leave(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, failure.Validation("userId is required")
	}
	left, err := s.queue.Leave(ctx, userID)
	if err != nil {
		s.metrics.QueueOperations.WithLabelValues("leave", "error").Inc()
		return false, failure.Transient(err, "failed to leave queue")
	}
	s.metrics.QueueOperations.WithLabelValues("leave", "ok").Inc()
	if left {
		s.logger.Info().Str("user_id", userID).Msg("player left queue")
	}
	return left, nil
}

type QueueStatus struct {
	Ticket   *domain.QueueTicket `json:"ticket"`
	Position int                 `json:"position"`
}

func (s *QueueService) Status(ctx context.Context, userID string) (*QueueStatus, error) {
	if userID == "" {
		return nil, failure.Validation("userId is required")
	}
	ticket, pos, err := s.queue.Status(ctx, userID)
	if errors.Is(err, domain.ErrTicketNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, failure.Transient(err, "failed to read queue status")
	}
	return &QueueStatus{Ticket: ticket, Position: pos}, nil
}
