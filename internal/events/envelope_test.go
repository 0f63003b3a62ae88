package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/failure"
)

type spawnOnly struct {
	got []string
}

var _ Visitor = (*spawnOnly)(nil)

func (s *spawnOnly) VisitSpawnRequested(_ context.Context, e SpawnRequested) error {
	s.got = append(s.got, e.MatchID)
	return nil
}

func (*spawnOnly) VisitServerSpawned(context.Context, ServerSpawned) error {
	return Unsupported(TypeServerSpawned)
}

func (*spawnOnly) VisitMatchCompleted(context.Context, MatchCompleted) error {
	return Unsupported(TypeMatchCompleted)
}

func (*spawnOnly) VisitAntiCheatFlagged(context.Context, AntiCheatFlagged) error {
	return Unsupported(TypeAntiCheatFlagged)
}

func (*spawnOnly) VisitUserLogin(context.Context, UserLogin) error {
	return Unsupported(TypeUserLogin)
}

func (*spawnOnly) VisitWalletReward(context.Context, WalletReward) error {
	return Unsupported(TypeWalletReward)
}

func TestEncodeDecode_MatchCompleted(t *testing.T) {
	winner := 2
	in := MatchCompleted{
		MatchID:    "m1",
		WinnerTeam: &winner,
		Stats: []PlayerStat{
			{UserID: "u1", Team: 1, Kills: 12, Deaths: 9, Headshots: 4},
			{UserID: "u2", Team: 2, Kills: 20, Deaths: 2, Headshots: 10, Clutches: 3, IsWinner: true},
		},
	}
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	data, err := Encode(in, now)
	require.NoError(t, err)

	evt, env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeMatchCompleted, env.Type)
	assert.Equal(t, Version, env.Version)
	assert.True(t, env.Timestamp.Equal(now))
	assert.Equal(t, in, evt)
}

func TestDecode_RejectsUnknownType(t *testing.T) {
	_, _, err := Decode([]byte(`{"type":"match.exploded","version":1,"payload":{},"timestamp":"2026-10-15T12:00:00Z"}`))
	require.Error(t, err)
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	_, _, err := Decode([]byte(`{"type":"server.spawn.requested","version":2,"payload":{"matchId":"m1"},"timestamp":"2026-10-15T12:00:00Z"}`))
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}

func TestDecode_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"type":"server.spawn.requested","version":1,"payload":{"matchId":""}}`,
		`{"type":"server.spawn.requested","version":1}`,
		`{"type":"match.completed","version":1,"payload":{"matchId":"m1","stats":[]}}`,
		`{"type":"match.completed","version":1,"payload":{"matchId":"m1","winnerTeam":3,"stats":[{"userId":"u1"}]}}`,
	} {
		_, _, err := Decode([]byte(raw))
		assert.Equal(t, failure.KindValidation, failure.Classify(err), raw)
	}
}

func TestMatchCompleted_Validate(t *testing.T) {
	err := MatchCompleted{MatchID: "m1", Stats: []PlayerStat{{UserID: "u1"}, {UserID: "u1"}}}.Validate()
	assert.Error(t, err)

	err = MatchCompleted{MatchID: "m1", Stats: []PlayerStat{{UserID: "u1", Kills: 1, Headshots: 2}}}.Validate()
	assert.Error(t, err)
}

func TestEncode_RejectsInvalidEvent(t *testing.T) {
	_, err := Encode(SpawnRequested{}, time.Now())
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}

func TestAccept_DispatchesToVisitor(t *testing.T) {
	v := &spawnOnly{}
	ctx := context.Background()

	require.NoError(t, SpawnRequested{MatchID: "m9"}.Accept(ctx, v))
	assert.Equal(t, []string{"m9"}, v.got)

	err := WalletReward{MatchID: "m9"}.Accept(ctx, v)
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}
