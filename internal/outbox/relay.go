// Package outbox publishes committed outbox rows to the bus.
package outbox

import (
	"context"
	"sync"
	"time"

	"matchcore/internal/metrics"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, topic string, body []byte) error
}

// Relay polls the outbox and publishes rows in id order. A row whose publish
// fails is released and retried on the next tick, so delivery is
// at-least-once.
type Relay struct {
	repo      *repository.OutboxRepository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	interval  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRelay(repo *repository.OutboxRepository, publisher Publisher, m *metrics.Metrics, interval time.Duration, logger zerolog.Logger) *Relay {
	return &Relay{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With().Str("component", "outbox").Logger(),
		interval:  interval,
	}
}

// Flush publishes every currently claimable row and returns how many went out.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.repo.Claim(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for i, msg := range msgs {
		if err := r.publisher.Publish(ctx, msg.Topic, msg.Payload); err != nil {
			r.metrics.OutboxFailures.Inc()
			r.logger.Warn().Err(err).Int64("id", msg.ID).Str("topic", msg.Topic).Msg("publish failed, releasing")
			for _, rest := range msgs[i:] {
				if err := r.repo.Release(ctx, rest.ID); err != nil {
					r.logger.Error().Err(err).Int64("id", rest.ID).Msg("failed to release outbox row")
				}
			}
			return published, err
		}
		if err := r.repo.MarkPublished(ctx, msg.ID); err != nil {
			// Published but not marked: the lease expires and the row goes out again.
			return published, err
		}
		r.metrics.OutboxPublished.Inc()
		published++
	}
	return published, nil
}

func (r *Relay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error().Err(err).Msg("outbox flush failed")
				} else if n > 0 {
					r.logger.Debug().Int("published", n).Msg("outbox flushed")
				}
			}
		}
	}()
	r.logger.Info().Dur("interval", r.interval).Msg("outbox relay started")
}

func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info().Msg("outbox relay stopped")
}
