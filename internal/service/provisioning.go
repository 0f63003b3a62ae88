package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"matchcore/internal/api"
	"matchcore/internal/config"
	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/repository"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// ComputeProvider is the slice of the compute API the coordinator needs.
type ComputeProvider interface {
	Provider() string
	Provision(ctx context.Context, region, name string, labels map[string]string) (*api.Instance, error)
	Stop(ctx context.Context, instanceID string) error
	Delete(ctx context.Context, instanceID string) error
}

// Coordinator drives a match from PENDING to ACTIVE: it provisions a server
// for server.spawn.requested, activates the match on server.spawned, and
// cancels matches whose provisioning outlives the timeout.
type Coordinator struct {
	compute ComputeProvider
	matches *repository.MatchRepository
	servers *repository.ServerRepository
	metrics *metrics.Metrics
	logger  zerolog.Logger

	region        string
	timeout       time.Duration
	sweepInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(
	cfg *config.Config,
	compute ComputeProvider,
	matches *repository.MatchRepository,
	servers *repository.ServerRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		compute:       compute,
		matches:       matches,
		servers:       servers,
		metrics:       m,
		logger:        logger.With().Str("component", "provisioner").Logger(),
		region:        cfg.ComputeRegion,
		timeout:       cfg.ProvisionTimeout,
		sweepInterval: cfg.ProvisionSweepInterval,
	}
}

var _ events.Visitor = (*Coordinator)(nil)

func (c *Coordinator) VisitSpawnRequested(ctx context.Context, e events.SpawnRequested) error {
	log := c.logger.With().Str("match_id", e.MatchID).Logger()

	ok, err := c.matches.BeginProvisioning(ctx, e.MatchID, time.Now().UTC())
	if err != nil {
		return failure.Transient(err, "failed to begin provisioning")
	}
	if !ok {
		m, err := c.matches.Get(ctx, e.MatchID)
		if errors.Is(err, domain.ErrMatchNotFound) {
			return failure.Validation("spawn requested for unknown match %s", e.MatchID)
		}
		if err != nil {
			return failure.Transient(err, "failed to load match")
		}
		c.metrics.Provisioning.WithLabelValues("duplicate").Inc()
		return failure.Duplicate("match %s already %s", m.ID, m.Status)
	}

	start := time.Now()
	inst, err := c.compute.Provision(ctx, c.region, instanceName(e.MatchID), map[string]string{"match": e.MatchID})
	c.metrics.ProvisionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.Provisioning.WithLabelValues("provider_error").Inc()
		log.Error().Err(err).Msg("provider rejected instance, cancelling match")
		if _, cerr := c.matches.Cancel(ctx, e.MatchID); cerr != nil {
			// The sweeper cancels it once the timeout passes.
			log.Error().Err(cerr).Msg("failed to cancel match after provider error")
		}
		return failure.Business("provisioning failed for match %s: %v", e.MatchID, err)
	}

	si := &domain.ServerInstance{
		Provider:           c.compute.Provider(),
		ProviderInstanceID: inst.ID,
		MatchID:            &e.MatchID,
		Region:             c.region,
		IP:                 inst.IP,
		Port:               inst.Port,
		Status:             domain.ServerActive,
	}
	attached, err := c.servers.Attach(ctx, si)
	if err != nil {
		c.release(ctx, inst.ID, log)
		if _, rerr := c.matches.ResetProvisioning(ctx, e.MatchID); rerr != nil {
			// Left PROVISIONING; the sweeper cancels it once the timeout passes.
			log.Error().Err(rerr).Msg("failed to reset match after attach error")
		}
		c.metrics.Provisioning.WithLabelValues("retry").Inc()
		return failure.Transient(err, "failed to record server for match %s", e.MatchID)
	}
	if !attached {
		c.metrics.Provisioning.WithLabelValues("released").Inc()
		log.Warn().Str("instance", inst.ID).Msg("match left provisioning before server was ready, releasing instance")
		c.release(ctx, inst.ID, log)
		return failure.Business("match %s no longer provisioning", e.MatchID)
	}

	c.metrics.Provisioning.WithLabelValues("ok").Inc()
	log.Info().
		Str("server_instance_id", si.ID).
		Str("provider_instance_id", inst.ID).
		Str("ip", inst.IP).
		Int("port", inst.Port).
		Msg("server provisioned")
	return nil
}

func (c *Coordinator) VisitServerSpawned(ctx context.Context, e events.ServerSpawned) error {
	ok, err := c.matches.Activate(ctx, e.MatchID, e.ServerInstanceID)
	if err != nil {
		return failure.Transient(err, "failed to activate match")
	}
	if ok {
		c.logger.Info().Str("match_id", e.MatchID).Str("server_instance_id", e.ServerInstanceID).Msg("match active")
		return nil
	}

	m, err := c.matches.Get(ctx, e.MatchID)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return failure.Validation("server spawned for unknown match %s", e.MatchID)
	}
	if err != nil {
		return failure.Transient(err, "failed to load match")
	}
	if m.Status == domain.MatchActive {
		return failure.Duplicate("match %s already active", m.ID)
	}
	return failure.Business("match %s is %s, cannot activate", m.ID, m.Status)
}

func (c *Coordinator) release(ctx context.Context, providerID string, log zerolog.Logger) {
	if err := c.compute.Delete(ctx, providerID); err != nil {
		log.Error().Err(err).Str("instance", providerID).Msg("failed to release instance")
	}
}

// SweepStale cancels matches stuck in PROVISIONING for longer than the timeout.
func (c *Coordinator) SweepStale(ctx context.Context) ([]string, error) {
	ids, err := c.matches.CancelStaleProvisioning(ctx, time.Now().UTC().Add(-c.timeout))
	for _, id := range ids {
		c.metrics.Provisioning.WithLabelValues("timeout").Inc()
		c.logger.Warn().Str("match_id", id).Dur("timeout", c.timeout).Msg("provisioning timed out, match cancelled")
	}
	return ids, err
}

// SpawnTest provisions an instance attached to no match.
func (c *Coordinator) SpawnTest(ctx context.Context) (*domain.ServerInstance, error) {
	suffix, err := gonanoid.Generate("abcdefghijklmnopqrstuvwxyz0123456789", 10)
	if err != nil {
		return nil, err
	}
	inst, err := c.compute.Provision(ctx, c.region, "mc-test-"+suffix, map[string]string{"purpose": "test"})
	if err != nil {
		return nil, failure.Transient(err, "provider rejected test instance")
	}

	si := &domain.ServerInstance{
		Provider:           c.compute.Provider(),
		ProviderInstanceID: inst.ID,
		Region:             c.region,
		IP:                 inst.IP,
		Port:               inst.Port,
		Status:             domain.ServerActive,
	}
	if err := c.servers.Create(ctx, si); err != nil {
		c.release(ctx, inst.ID, c.logger)
		return nil, failure.Transient(err, "failed to record test instance")
	}
	c.logger.Info().Str("server_instance_id", si.ID).Str("provider_instance_id", inst.ID).Msg("test server provisioned")
	return si, nil
}

// StopInstance halts an instance. Repeating it is harmless.
func (c *Coordinator) StopInstance(ctx context.Context, id string) (*domain.ServerInstance, error) {
	return c.shutdown(ctx, id, "stop", c.compute.Stop)
}

// DeleteInstance removes an instance at the provider. Repeating it is harmless.
func (c *Coordinator) DeleteInstance(ctx context.Context, id string) (*domain.ServerInstance, error) {
	return c.shutdown(ctx, id, "delete", c.compute.Delete)
}

func (c *Coordinator) shutdown(ctx context.Context, id, op string, call func(context.Context, string) error) (*domain.ServerInstance, error) {
	if id == "" {
		return nil, failure.Validation("instanceId is required")
	}
	si, err := c.servers.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if si.Status != domain.ServerStopped {
		if _, err := c.servers.SetStatus(ctx, id, domain.ServerStopping); err != nil {
			return nil, failure.Transient(err, "failed to mark instance stopping")
		}
	}
	if err := call(ctx, si.ProviderInstanceID); err != nil {
		return nil, failure.Transient(err, "provider %s failed for %s", op, id)
	}
	if _, err := c.servers.SetStatus(ctx, id, domain.ServerStopped); err != nil {
		return nil, failure.Transient(err, "failed to mark instance stopped")
	}

	si.Status = domain.ServerStopped
	c.logger.Info().Str("server_instance_id", id).Str("op", op).Msg("instance shut down")
	return si, nil
}

func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.SweepStale(ctx); err != nil && ctx.Err() == nil {
					c.logger.Error().Err(err).Msg("provisioning sweep failed")
				}
			}
		}
	}()
	c.logger.Info().Dur("timeout", c.timeout).Dur("interval", c.sweepInterval).Msg("provisioning sweeper started")
}

func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info().Msg("provisioning sweeper stopped")
}

func instanceName(matchID string) string {
	return "mc-" + strings.ToLower(strings.ReplaceAll(matchID, "_", "-"))
}

func (*Coordinator) VisitMatchCompleted(context.Context, events.MatchCompleted) error {
	return events.Unsupported(events.TypeMatchCompleted)
}

func (*Coordinator) VisitAntiCheatFlagged(context.Context, events.AntiCheatFlagged) error {
	return events.Unsupported(events.TypeAntiCheatFlagged)
}

func (*Coordinator) VisitUserLogin(context.Context, events.UserLogin) error {
	return events.Unsupported(events.TypeUserLogin)
}

func (*Coordinator) VisitWalletReward(context.Context, events.WalletReward) error {
	return events.Unsupported(events.TypeWalletReward)
}
