package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"matchcore/internal/config"
	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/metrics"
	"matchcore/internal/testutil"
)

func newMatchmaker(store *testutil.Store, cfg *config.Config) *Matchmaker {
	return NewMatchmaker(cfg, store.Matches, metrics.New(), zerolog.Nop())
}

func TestTryFormMatch_TenTickets(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	ids := store.QueuePlayers(t, testLadder, testRegion, ratings(100, 100, 10)...)

	m, err := newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchPending, m.Status)
	assert.Contains(t, domain.Maps, m.Map)

	roster, err := store.Matches.Players(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, roster, 10)
	perTeam := map[int]int{}
	for _, p := range roster {
		perTeam[p.Team]++
		assert.Zero(t, p.Kills)
	}
	assert.Equal(t, map[int]int{1: 5, 2: 5}, perTeam)

	for _, id := range ids {
		st, pos, err := store.Queue.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketMatched, st.Status)
		require.NotNil(t, st.MatchID)
		assert.Equal(t, m.ID, *st.MatchID)
		assert.Zero(t, pos)
	}

	assert.Equal(t, []string{string(events.TypeSpawnRequested)}, store.OutboxTopics(t))
}

func TestTryFormMatch_NineTicketsIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 10, 9)...)

	m, err := newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)
	assert.Nil(t, m)

	n, err := store.Queue.CountWaiting(ctx, testLadder, testRegion)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Empty(t, store.OutboxTopics(t))
}

func TestTryFormMatch_ConsumesOldestTen(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	ids := store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 10, 11)...)

	_, err := newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	require.NoError(t, err)

	st, pos, err := store.Queue.Status(ctx, ids[10])
	require.NoError(t, err)
	assert.Equal(t, domain.TicketWaiting, st.Status)
	assert.Equal(t, 1, pos)

	st, _, err = store.Queue.Status(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.TicketMatched, st.Status)
}

func TestTryFormMatch_OtherPoolUntouched(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	store.QueuePlayers(t, testLadder, "NA", ratings(1000, 0, 10)...)

	_, err := newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)

	n, err := store.Queue.CountWaiting(ctx, testLadder, "NA")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestRunOnce_DrainsEveryPool(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 5, 25)...)
	store.QueuePlayers(t, testLadder, "NA", ratings(1200, 5, 10)...)

	cfg := testConfig()
	cfg.MatchPools = append(cfg.MatchPools, config.Pool{Ladder: testLadder, Region: "NA"})

	formed, err := newMatchmaker(store, cfg).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, formed)

	n, err := store.Queue.CountWaiting(ctx, testLadder, testRegion)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, store.OutboxTopics(t), 3)
}

func TestTryFormMatch_ConcurrentCallersFormOneMatch(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	ids := store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 10, 10)...)
	mm := newMatchmaker(store, testConfig())

	var formed, short atomic.Int32
	var g errgroup.Group
	for range 8 {
		g.Go(func() error {
			_, err := mm.TryFormMatch(ctx, testLadder, testRegion)
			switch {
			case err == nil:
				formed.Add(1)
			case errors.Is(err, domain.ErrNotEnoughPlayers):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), formed.Load())
	assert.Equal(t, int32(7), short.Load())

	matchIDs := map[string]int{}
	for _, id := range ids {
		st, _, err := store.Queue.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketMatched, st.Status)
		require.NotNil(t, st.MatchID)
		matchIDs[*st.MatchID]++
	}
	assert.Len(t, matchIDs, 1)

	var matches int
	require.NoError(t, store.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&matches))
	assert.Equal(t, 1, matches)
	assert.Equal(t, []string{string(events.TypeSpawnRequested)}, store.OutboxTopics(t))
}

// A leave issued while the pool is being formed waits for the formation to
// commit and then finds the ticket already matched.
func TestForm_LeaveDuringFormationWaits(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	ids := store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 10, 10)...)

	type leaveResult struct {
		left bool
		err  error
	}
	done := make(chan leaveResult, 1)
	balance := func(c []domain.Candidate) (domain.Teams, error) {
		go func() {
			left, err := store.Queue.Leave(ctx, c[0].UserID)
			done <- leaveResult{left, err}
		}()
		return BalanceTeams(c)
	}

	m, err := store.Matches.Form(ctx, testLadder, testRegion, "Mirage", balance)
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.left)

	for _, id := range ids {
		st, _, err := store.Queue.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketMatched, st.Status)
		require.NotNil(t, st.MatchID)
		assert.Equal(t, m.ID, *st.MatchID)
	}
}

func TestTryFormMatch_WithdrawnTicketRollsBackFormation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	store.QueuePlayers(t, testLadder, testRegion, ratings(1000, 10, 10)...)

	// Cancels the oldest waiting ticket between selection and the flip.
	_, err := store.DB.ExecContext(ctx, `
		CREATE TRIGGER withdraw_oldest BEFORE INSERT ON matches BEGIN
			UPDATE queue_tickets SET status = 'CANCELLED'
			WHERE id = (SELECT id FROM queue_tickets WHERE status = 'WAITING' ORDER BY joined_at, id LIMIT 1);
		END`)
	require.NoError(t, err)

	_, err = store.Matches.Form(ctx, testLadder, testRegion, "Mirage", BalanceTeams)
	assert.ErrorIs(t, err, domain.ErrTicketConflict)

	m, err := newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	assert.ErrorIs(t, err, domain.ErrTicketConflict)
	assert.Nil(t, m)

	n, err := store.Queue.CountWaiting(ctx, testLadder, testRegion)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	var matches int
	require.NoError(t, store.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches").Scan(&matches))
	assert.Zero(t, matches)
	assert.Empty(t, store.OutboxTopics(t))

	// Once the withdrawal sticks the pool is one short.
	_, err = store.DB.ExecContext(ctx, "DROP TRIGGER withdraw_oldest")
	require.NoError(t, err)
	left, err := store.Queue.Leave(ctx, testLadder+"-"+testRegion+"-p00")
	require.NoError(t, err)
	require.True(t, left)

	_, err = newMatchmaker(store, testConfig()).TryFormMatch(ctx, testLadder, testRegion)
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)
}
