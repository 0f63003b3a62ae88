package service

import (
	"context"
	"errors"

	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
)

// Reporter accepts results from game servers and publishes match.completed.
type Reporter struct {
	matches *repository.MatchRepository
	outbox  *repository.OutboxRepository
	logger  zerolog.Logger
}

func NewReporter(matches *repository.MatchRepository, outbox *repository.OutboxRepository, logger zerolog.Logger) *Reporter {
	return &Reporter{matches: matches, outbox: outbox, logger: logger}
}

func (r *Reporter) Report(ctx context.Context, report events.MatchCompleted) error {
	if err := report.Validate(); err != nil {
		return err
	}

	m, err := r.matches.Get(ctx, report.MatchID)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return err
	}
	if err != nil {
		return failure.Transient(err, "failed to load match")
	}
	switch m.Status {
	case domain.MatchFinished:
		return failure.Duplicate("match %s already settled", m.ID)
	case domain.MatchCancelled:
		return failure.Business("match %s was cancelled", m.ID)
	}

	if err := r.outbox.Enqueue(ctx, report); err != nil {
		return failure.Transient(err, "failed to publish result")
	}
	r.logger.Info().Str("match_id", m.ID).Int("players", len(report.Stats)).Msg("match result reported")
	return nil
}
