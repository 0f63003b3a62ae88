package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
	"matchcore/internal/testutil"
)

func newPipeline(store *testutil.Store) *Pipeline {
	return NewPipeline(store.Settlements, store.Players, metrics.New(), zerolog.Nop())
}

type snapshot struct {
	Rating  int
	XP      int
	Level   int
	Balance string
}

func snapshotPlayers(t *testing.T, store *testutil.Store, roster []domain.MatchPlayerStat) map[string]snapshot {
	t.Helper()
	ctx := context.Background()
	out := make(map[string]snapshot, len(roster))
	for _, p := range roster {
		pl, err := store.Players.Get(ctx, p.UserID)
		require.NoError(t, err)
		w, _, err := store.Wallets.Get(ctx, p.UserID, -1)
		require.NoError(t, err)
		out[p.UserID] = snapshot{Rating: pl.Rating, XP: pl.XP, Level: pl.Level, Balance: w.Balance.String()}
	}
	return out
}

func assertLedgerInvariant(t *testing.T, store *testutil.Store, roster []domain.MatchPlayerStat) {
	t.Helper()
	for _, p := range roster {
		w, entries, err := store.Wallets.Get(context.Background(), p.UserID, -1)
		if errors.Is(err, domain.ErrPlayerNotFound) {
			continue
		}
		require.NoError(t, err)
		sum := decimal.Zero
		for _, e := range entries {
			sum = sum.Add(e.Amount)
		}
		assert.True(t, w.Balance.Equal(sum), "wallet %s: balance %s != ledger %s", p.UserID, w.Balance, sum)
	}
}

func TestSettle_AppliesResults(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)

	require.NoError(t, newPipeline(store).VisitMatchCompleted(ctx, report(m.ID, roster)))

	got, err := store.Matches.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchFinished, got.Status)
	require.NotNil(t, got.WinnerTeam)
	assert.Equal(t, 1, *got.WinnerTeam)
	assert.NotNil(t, got.EndedAt)

	for id, s := range snapshotPlayers(t, store, roster) {
		team := 0
		for _, p := range roster {
			if p.UserID == id {
				team = p.Team
			}
		}
		if team == 1 {
			assert.Equal(t, snapshot{Rating: 1025, XP: 100, Level: 1, Balance: "0.1"}, s, id)
		} else {
			assert.Equal(t, snapshot{Rating: 985, XP: 50, Level: 1, Balance: "0.02"}, s, id)
		}
	}

	stats, err := store.Matches.Players(ctx, m.ID)
	require.NoError(t, err)
	for _, s := range stats {
		assert.Equal(t, 5, s.Kills)
		assert.Equal(t, s.Team == 1, s.IsWinner)
	}

	topics := store.OutboxTopics(t)
	assert.Equal(t, string(events.TypeWalletReward), topics[len(topics)-1])
	assertLedgerInvariant(t, store, roster)
}

func TestSettle_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)
	p := newPipeline(store)
	evt := report(m.ID, roster)

	require.NoError(t, p.VisitMatchCompleted(ctx, evt))
	once := snapshotPlayers(t, store, roster)
	outboxOnce := len(store.OutboxTopics(t))

	err := p.VisitMatchCompleted(ctx, evt)
	assert.Equal(t, failure.KindDuplicate, failure.Classify(err))
	assert.True(t, failure.IsSuccess(err))

	assert.Equal(t, once, snapshotPlayers(t, store, roster))
	assert.Len(t, store.OutboxTopics(t), outboxOnce)
	assertLedgerInvariant(t, store, roster)
}

func TestSettle_VIPMultipliers(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)

	var winner, loser string
	for _, p := range roster {
		if p.Team == 1 && winner == "" {
			winner = p.UserID
		}
		if p.Team == 2 && loser == "" {
			loser = p.UserID
		}
	}
	require.NoError(t, store.Players.SetVIP(ctx, winner, true))
	require.NoError(t, store.Players.SetVIP(ctx, loser, true))

	require.NoError(t, newPipeline(store).VisitMatchCompleted(ctx, report(m.ID, roster)))

	s := snapshotPlayers(t, store, roster)
	assert.Equal(t, 1027, s[winner].Rating)
	assert.Equal(t, 120, s[winner].XP)
	assert.Equal(t, 983, s[loser].Rating)
	assert.Equal(t, 60, s[loser].XP)
}

func TestSettle_WinnerFromPlayerFlags(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)

	evt := report(m.ID, roster)
	evt.WinnerTeam = nil
	for i := range evt.Stats {
		evt.Stats[i].IsWinner = evt.Stats[i].Team == 2
	}
	require.NoError(t, newPipeline(store).VisitMatchCompleted(ctx, evt))

	got, err := store.Matches.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.WinnerTeam)
	assert.Equal(t, 2, *got.WinnerTeam)
}

func TestSettle_PartialFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)
	victim := roster[3].UserID

	_, err := store.DB.Exec(`CREATE TRIGGER fail_one_ledger BEFORE INSERT ON ledger_entries
WHEN NEW.wallet_id = (SELECT id FROM wallets WHERE user_id = '` + victim + `')
BEGIN SELECT RAISE(ABORT, 'ledger unavailable'); END`)
	require.NoError(t, err)

	p := newPipeline(store)
	evt := report(m.ID, roster)

	err = p.VisitMatchCompleted(ctx, evt)
	assert.Equal(t, failure.KindTransient, failure.Classify(err))

	got, err := store.Matches.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchActive, got.Status)

	n, err := store.Queries.CountSettlements(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	pl, err := store.Players.Get(ctx, victim)
	require.NoError(t, err)
	assert.Equal(t, 1000, pl.Rating, "rolled back player keeps old rating")
	assertLedgerInvariant(t, store, roster)

	_, err = store.DB.Exec(`DROP TRIGGER fail_one_ledger`)
	require.NoError(t, err)

	res, err := store.Settlements.Settle(ctx, evt)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Skipped)
	require.Len(t, res.Settled, 1)
	assert.Equal(t, victim, res.Settled[0].UserID)
	assert.True(t, res.Finished)

	n, err = store.Queries.CountSettlements(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assertLedgerInvariant(t, store, roster)

	for id, s := range snapshotPlayers(t, store, roster) {
		assert.Contains(t, []int{1025, 985}, s.Rating, id)
	}
}

func TestSettle_SmurfRiskFlag(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	m, roster := activeMatch(t, store)

	evt := report(m.ID, roster)
	evt.Stats[0].Kills, evt.Stats[0].Deaths, evt.Stats[0].Headshots, evt.Stats[0].Clutches = 20, 2, 10, 3
	smurf := evt.Stats[0].UserID

	require.NoError(t, newPipeline(store).VisitMatchCompleted(ctx, evt))

	flags, err := store.Anomalies.Flags(ctx, smurf)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, domain.FlagSmurfRisk, flags[0].Label)
	assert.Equal(t, float64(100), flags[0].Score)
	require.NotNil(t, flags[0].MatchID)
	assert.Equal(t, m.ID, *flags[0].MatchID)

	score, err := store.Anomalies.SmurfScore(ctx, smurf)
	require.NoError(t, err)
	assert.Equal(t, float64(100), score.Score)

	other, err := store.Anomalies.Flags(ctx, evt.Stats[1].UserID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSettle_MatchStates(t *testing.T) {
	ctx := context.Background()

	t.Run("pending is retried", func(t *testing.T) {
		store := testutil.NewStore(t)
		m := formMatch(t, store)
		roster, err := store.Matches.Players(ctx, m.ID)
		require.NoError(t, err)

		err = newPipeline(store).VisitMatchCompleted(ctx, report(m.ID, roster))
		assert.Equal(t, failure.KindTransient, failure.Classify(err))
	})

	t.Run("cancelled is acknowledged", func(t *testing.T) {
		store := testutil.NewStore(t)
		m := formMatch(t, store)
		roster, err := store.Matches.Players(ctx, m.ID)
		require.NoError(t, err)
		_, err = store.Matches.Cancel(ctx, m.ID)
		require.NoError(t, err)

		err = newPipeline(store).VisitMatchCompleted(ctx, report(m.ID, roster))
		assert.Equal(t, failure.KindBusiness, failure.Classify(err))
	})

	t.Run("unknown match is rejected", func(t *testing.T) {
		store := testutil.NewStore(t)
		evt := events.MatchCompleted{MatchID: "ghost", Stats: []events.PlayerStat{{UserID: "u1"}}}
		err := newPipeline(store).VisitMatchCompleted(ctx, evt)
		assert.Equal(t, failure.KindValidation, failure.Classify(err))
	})

	t.Run("stranger in stats is rejected", func(t *testing.T) {
		store := testutil.NewStore(t)
		m, roster := activeMatch(t, store)
		evt := report(m.ID, roster)
		evt.Stats[0].UserID = "stranger"

		err := newPipeline(store).VisitMatchCompleted(ctx, evt)
		assert.Equal(t, failure.KindValidation, failure.Classify(err))

		n, err := store.Queries.CountSettlements(ctx, m.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPipeline_UserLogin(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	p := newPipeline(store)

	require.NoError(t, p.VisitUserLogin(ctx, events.UserLogin{UserID: "newbie"}))

	pl, err := store.Players.Get(ctx, "newbie")
	require.NoError(t, err)
	assert.Equal(t, 1000, pl.Rating)
	w, _, err := store.Wallets.Get(ctx, "newbie", 10)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())

	err = p.VisitUserLogin(ctx, events.UserLogin{UserID: "newbie"})
	assert.Equal(t, failure.KindDuplicate, failure.Classify(err))
}

func TestPipeline_RejectsUnhandledEvents(t *testing.T) {
	err := newPipeline(testutil.NewStore(t)).VisitSpawnRequested(context.Background(), events.SpawnRequested{MatchID: "m"})
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}
