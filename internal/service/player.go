package service

import (
	"context"
	"errors"

	"matchcore/internal/constants"
	"matchcore/internal/domain"
	"matchcore/internal/failure"
	"matchcore/internal/rank"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type PlayerService struct {
	players   *repository.PlayerRepository
	wallets   *repository.WalletRepository
	anomalies *repository.AnomalyRepository
	logger    zerolog.Logger
}

func NewPlayerService(players *repository.PlayerRepository, wallets *repository.WalletRepository, anomalies *repository.AnomalyRepository, logger zerolog.Logger) *PlayerService {
	return &PlayerService{players: players, wallets: wallets, anomalies: anomalies, logger: logger}
}

type PlayerRank struct {
	UserID string `json:"userId"`
	Level  int    `json:"level"`
	XP     int    `json:"xp"`
	IsVIP  bool   `json:"isVip"`
	rank.Progress
}

type WalletView struct {
	Wallet  *domain.Wallet       `json:"wallet"`
	Entries []domain.LedgerEntry `json:"entries"`
}

type Profile struct {
	Rank       *PlayerRank        `json:"rank"`
	Wallet     *WalletView        `json:"wallet"`
	SmurfScore *domain.SmurfScore `json:"smurfScore,omitempty"`
}

func (s *PlayerService) Rank(ctx context.Context, userID string) (*PlayerRank, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	p, err := s.players.Get(ctx, userID)
	if err != nil {
		return nil, lookupError(err, "failed to load player")
	}
	return &PlayerRank{
		UserID:   p.ID,
		Level:    p.Level,
		XP:       p.XP,
		IsVIP:    p.IsVIP,
		Progress: rank.ProgressOf(p.Rating),
	}, nil
}

// Wallet returns the balance and the newest ledger entries.
func (s *PlayerService) Wallet(ctx context.Context, userID string) (*WalletView, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	w, entries, err := s.wallets.Get(ctx, userID, constants.WalletHistoryLimit)
	if errors.Is(err, domain.ErrPlayerNotFound) {
		// Wallets are created on first credit; a known player without one
		// has an empty balance.
		if _, perr := s.players.Get(ctx, userID); perr != nil {
			return nil, lookupError(perr, "failed to load player")
		}
		return &WalletView{Wallet: &domain.Wallet{UserID: userID}, Entries: []domain.LedgerEntry{}}, nil
	}
	if err != nil {
		return nil, lookupError(err, "failed to load wallet")
	}
	return &WalletView{Wallet: w, Entries: entries}, nil
}

// Profile loads rank, wallet and the latest smurf score concurrently.
func (s *PlayerService) Profile(ctx context.Context, userID string) (*Profile, error) {
	var out Profile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Rank, err = s.Rank(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		out.Wallet, err = s.Wallet(gctx, userID)
		return err
	})
	g.Go(func() error {
		score, err := s.anomalies.SmurfScore(gctx, userID)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			return nil
		}
		out.SmurfScore = score
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		return nil, err
	}
	return &out, nil
}

func lookupError(err error, msg string) error {
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return err
	}
	return failure.Transient(err, "%s", msg)
}
