// Package testutil builds migrated sqlite stores for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"matchcore/internal/database"
	"matchcore/internal/db"
	"matchcore/internal/domain"
	"matchcore/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type Store struct {
	DB          *sql.DB
	Queries     *db.Queries
	Players     *repository.PlayerRepository
	Queue       *repository.QueueRepository
	Matches     *repository.MatchRepository
	Servers     *repository.ServerRepository
	Wallets     *repository.WalletRepository
	Anomalies   *repository.AnomalyRepository
	Settlements *repository.SettlementRepository
	Outbox      *repository.OutboxRepository
}

// NewStore opens a fresh migrated database under t.TempDir.
func NewStore(t testing.TB) *Store {
	t.Helper()
	logger := zerolog.Nop()

	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "matchcore.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	q := repository.ProvideQueries(sqlDB)
	return &Store{
		DB:          sqlDB,
		Queries:     q,
		Players:     repository.NewPlayerRepository(sqlDB, q, logger),
		Queue:       repository.NewQueueRepository(sqlDB, q, logger),
		Matches:     repository.NewMatchRepository(sqlDB, q, logger),
		Servers:     repository.NewServerRepository(sqlDB, q, logger),
		Wallets:     repository.NewWalletRepository(sqlDB, q, logger),
		Anomalies:   repository.NewAnomalyRepository(sqlDB, q, logger),
		Settlements: repository.NewSettlementRepository(sqlDB, q, logger),
		Outbox:      repository.NewOutboxRepository(sqlDB, q, logger),
	}
}

func (s *Store) SeedPlayer(t testing.TB, id string, rating int, vip bool) {
	t.Helper()
	require.NoError(t, s.Players.Create(context.Background(), &domain.Player{
		ID:       id,
		Username: id,
		Rating:   rating,
		IsVIP:    vip,
	}))
}

// QueuePlayers seeds and queues one player per rating, in order, returning their ids.
func (s *Store) QueuePlayers(t testing.TB, ladder, region string, ratings ...int) []string {
	t.Helper()
	ids := make([]string, len(ratings))
	for i, r := range ratings {
		ids[i] = fmt.Sprintf("%s-%s-p%02d", ladder, region, i)
		s.SeedPlayer(t, ids[i], r, false)
		_, err := s.Queue.Join(context.Background(), ids[i], ladder, region)
		require.NoError(t, err)
	}
	return ids
}

// OutboxTopics lists the topics of unpublished outbox rows in insert order.
func (s *Store) OutboxTopics(t testing.TB) []string {
	t.Helper()
	msgs, err := s.Outbox.Pending(context.Background())
	require.NoError(t, err)
	topics := make([]string, len(msgs))
	for i, m := range msgs {
		topics[i] = m.Topic
	}
	return topics
}
