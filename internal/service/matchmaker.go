package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"matchcore/internal/config"
	"matchcore/internal/constants"
	"matchcore/internal/domain"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

type Matchmaker struct {
	matches  *repository.MatchRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	pools    []config.Pool
	interval time.Duration
	pickMap  func() string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewMatchmaker(cfg *config.Config, matches *repository.MatchRepository, m *metrics.Metrics, logger zerolog.Logger) *Matchmaker {
	return &Matchmaker{
		matches:  matches,
		metrics:  m,
		logger:   logger.With().Str("component", "matchmaker").Logger(),
		pools:    cfg.MatchPools,
		interval: cfg.MatchmakerInterval,
		pickMap:  randomMap,
	}
}

func randomMap() string {
	return domain.Maps[rand.IntN(len(domain.Maps))]
}

// TryFormMatch forms at most one match from the pool. It returns
// domain.ErrNotEnoughPlayers when fewer than MatchSize tickets wait, and
// retries formation when a ticket changes underneath it.
func (s *Matchmaker) TryFormMatch(ctx context.Context, ladder, region string) (*domain.Match, error) {
	backoff := retry.WithMaxRetries(constants.MatchmakerRetryAttempts-1, retry.NewExponential(constants.MatchmakerRetryBase))

	var match *domain.Match
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		m, err := s.matches.Form(ctx, ladder, region, s.pickMap(), BalanceTeams)
		if errors.Is(err, domain.ErrTicketConflict) || failure.IsBusy(err) {
			s.logger.Debug().Err(err).Str("ladder", ladder).Str("region", region).Msg("match formation conflict, retrying")
			return retry.RetryableError(err)
		}
		match = m
		return err
	})

	switch {
	case err == nil:
		s.metrics.MatchesFormed.WithLabelValues(ladder, region).Inc()
		s.logger.Info().
			Str("match_id", match.ID).
			Str("ladder", ladder).
			Str("region", region).
			Str("map", match.Map).
			Msg("match formed")
		return match, nil
	case errors.Is(err, domain.ErrNotEnoughPlayers):
		return nil, err
	case errors.Is(err, domain.ErrUnbalancedTeams):
		s.metrics.MatchFormationFails.WithLabelValues("unbalanced").Inc()
		s.logger.Error().Err(err).Str("ladder", ladder).Str("region", region).Msg("teams could not be balanced, tickets left waiting")
	case errors.Is(err, domain.ErrTicketConflict):
		s.metrics.MatchFormationFails.WithLabelValues("conflict").Inc()
		s.logger.Warn().Err(err).Str("ladder", ladder).Str("region", region).Msg("match formation kept conflicting")
	default:
		s.metrics.MatchFormationFails.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Str("ladder", ladder).Str("region", region).Msg("match formation failed")
	}
	return nil, err
}

// RunOnce drains every configured pool, forming as many matches as each
// allows, and returns the number formed.
func (s *Matchmaker) RunOnce(ctx context.Context) (int, error) {
	var formed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, pool := range s.pools {
		g.Go(func() error {
			for {
				_, err := s.TryFormMatch(gctx, pool.Ladder, pool.Region)
				if errors.Is(err, domain.ErrNotEnoughPlayers) {
					return nil
				}
				if err != nil {
					return err
				}
				formed.Add(1)
			}
		})
	}
	err := g.Wait()
	return int(formed.Load()), err
}

func (s *Matchmaker) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error().Err(err).Msg("matchmaking pass failed")
				}
			}
		}
	}()
	s.logger.Info().Dur("interval", s.interval).Int("pools", len(s.pools)).Msg("matchmaker started")
}

func (s *Matchmaker) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("matchmaker stopped")
}
