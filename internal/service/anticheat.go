package service

import (
	"context"

	"matchcore/internal/domain"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/repository"
	"matchcore/internal/scoring"

	"github.com/rs/zerolog"
)

type HeartbeatResult struct {
	Score   float64             `json:"score"`
	Flagged bool                `json:"flagged"`
	Flag    *domain.AnomalyFlag `json:"flag,omitempty"`
}

// AntiCheat scores client heartbeats. It only flags; it never bans.
type AntiCheat struct {
	anomalies *repository.AnomalyRepository
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewAntiCheat(anomalies *repository.AnomalyRepository, m *metrics.Metrics, logger zerolog.Logger) *AntiCheat {
	return &AntiCheat{
		anomalies: anomalies,
		metrics:   m,
		logger:    logger.With().Str("component", "anticheat").Logger(),
	}
}

func (a *AntiCheat) Heartbeat(ctx context.Context, hb domain.Heartbeat) (*HeartbeatResult, error) {
	if hb.UserID == "" || hb.MatchID == "" {
		return nil, failure.Validation("userId and matchId are required")
	}

	score := scoring.ScoreHeartbeat(hb.Processes, hb.Chat)
	a.metrics.HeartbeatScore.Observe(score)

	res := &HeartbeatResult{Score: score}
	if !scoring.IsClientAnomaly(score) {
		return res, nil
	}

	flag, err := a.anomalies.FlagClientAnomaly(ctx, hb.UserID, hb.MatchID, score)
	if err != nil {
		return nil, failure.Transient(err, "failed to record anomaly flag")
	}
	a.metrics.AnomalyFlags.WithLabelValues(domain.FlagClientAnomaly).Inc()
	a.logger.Warn().
		Str("user_id", hb.UserID).
		Str("match_id", hb.MatchID).
		Float64("score", score).
		Msg("client anomaly flagged")

	res.Flagged = true
	res.Flag = flag
	return res, nil
}
