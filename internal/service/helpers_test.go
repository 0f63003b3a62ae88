package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"matchcore/internal/api"
	"matchcore/internal/config"
	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/metrics"
	"matchcore/internal/testutil"
)

const (
	testLadder = "ranked"
	testRegion = "EU"
)

func testConfig() *config.Config {
	return &config.Config{
		ComputeProvider:        "fake",
		ComputeRegion:          "europe-west1",
		ProvisionTimeout:       time.Minute,
		ProvisionSweepInterval: time.Second,
		MatchmakerInterval:     time.Second,
		MatchPools:             []config.Pool{{Ladder: testLadder, Region: testRegion}},
	}
}

type fakeCompute struct {
	mu        sync.Mutex
	err       error
	onCreate  func()
	created   []string
	stopped   []string
	deleted   []string
	instances int
}

func (f *fakeCompute) Provider() string { return "fake" }

func (f *fakeCompute) Provision(_ context.Context, _, name string, _ map[string]string) (*api.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.err != nil {
		return nil, f.err
	}
	f.instances++
	f.created = append(f.created, name)
	return &api.Instance{ID: fmt.Sprintf("vm-%d", f.instances), IP: "10.0.0.1", Port: 27015}, nil
}

func (f *fakeCompute) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeCompute) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func newCoordinator(store *testutil.Store, compute ComputeProvider) *Coordinator {
	return NewCoordinator(testConfig(), compute, store.Matches, store.Servers, metrics.New(), zerolog.Nop())
}

func ratings(from, step, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = from + i*step
	}
	return out
}

// formMatch queues ten players at rating 1000 and forms a PENDING match.
func formMatch(t *testing.T, store *testutil.Store) *domain.Match {
	t.Helper()
	store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 0, 10)...)
	m, err := store.Matches.Form(context.Background(), testLadder, testRegion, "Mirage", BalanceTeams)
	require.NoError(t, err)
	return m
}

// activeMatch forms a match and walks it through provisioning to ACTIVE.
func activeMatch(t *testing.T, store *testutil.Store) (*domain.Match, []domain.MatchPlayerStat) {
	t.Helper()
	ctx := context.Background()
	m := formMatch(t, store)

	c := newCoordinator(store, &fakeCompute{})
	require.NoError(t, c.VisitSpawnRequested(ctx, events.SpawnRequested{MatchID: m.ID}))
	m, err := store.Matches.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, m.ServerInstanceID)
	require.NoError(t, c.VisitServerSpawned(ctx, events.ServerSpawned{MatchID: m.ID, ServerInstanceID: *m.ServerInstanceID}))

	roster, err := store.Matches.Players(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, roster, 10)
	return m, roster
}

// report builds a quiet result for every rostered player with team 1 winning.
func report(matchID string, roster []domain.MatchPlayerStat) events.MatchCompleted {
	winner := 1
	stats := make([]events.PlayerStat, len(roster))
	for i, p := range roster {
		stats[i] = events.PlayerStat{UserID: p.UserID, Team: p.Team, Kills: 5, Deaths: 5, Assists: 2, Headshots: 1}
	}
	return events.MatchCompleted{MatchID: matchID, Stats: stats, WinnerTeam: &winner}
}
