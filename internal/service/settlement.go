package service

import (
	"context"

	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
)

// Pipeline consumes match.completed and user.login.
type Pipeline struct {
	settlements *repository.SettlementRepository
	players     *repository.PlayerRepository
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func NewPipeline(settlements *repository.SettlementRepository, players *repository.PlayerRepository, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		settlements: settlements,
		players:     players,
		metrics:     m,
		logger:      logger.With().Str("component", "settlement").Logger(),
	}
}

var _ events.Visitor = (*Pipeline)(nil)

func (p *Pipeline) VisitMatchCompleted(ctx context.Context, e events.MatchCompleted) error {
	res, err := p.settlements.Settle(ctx, e)
	kind := failure.Classify(err)
	p.metrics.Settlements.WithLabelValues(kind.String()).Inc()

	log := p.logger.With().Str("match_id", e.MatchID).Logger()
	if res != nil {
		if res.SmurfFlags > 0 {
			p.metrics.AnomalyFlags.WithLabelValues(domain.FlagSmurfRisk).Add(float64(res.SmurfFlags))
		}
		ev := log.Info()
		if !res.Finished {
			ev = log.Warn()
		}
		ev.Int("settled", len(res.Settled)).
			Int("skipped", res.Skipped).
			Strs("failed", res.Failed).
			Int("smurf_flags", res.SmurfFlags).
			Bool("finished", res.Finished).
			Msg("match settled")
	}

	switch kind {
	case failure.KindDuplicate:
		log.Debug().Err(err).Msg("match already settled")
	case failure.KindBusiness:
		log.Warn().Err(err).Msg("settlement skipped")
	}
	return err
}

// VisitUserLogin makes sure a player and wallet exist for the user.
func (p *Pipeline) VisitUserLogin(ctx context.Context, e events.UserLogin) error {
	created, err := p.players.Ensure(ctx, e.UserID)
	if err != nil {
		return failure.Transient(err, "failed to ensure player %s", e.UserID)
	}
	if !created {
		return failure.Duplicate("player %s exists", e.UserID)
	}
	return nil
}

func (*Pipeline) VisitSpawnRequested(context.Context, events.SpawnRequested) error {
	return events.Unsupported(events.TypeSpawnRequested)
}

func (*Pipeline) VisitServerSpawned(context.Context, events.ServerSpawned) error {
	return events.Unsupported(events.TypeServerSpawned)
}

func (*Pipeline) VisitAntiCheatFlagged(context.Context, events.AntiCheatFlagged) error {
	return events.Unsupported(events.TypeAntiCheatFlagged)
}

func (*Pipeline) VisitWalletReward(context.Context, events.WalletReward) error {
	return events.Unsupported(events.TypeWalletReward)
}
