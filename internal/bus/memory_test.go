package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/metrics"
)

func testOptions() Options {
	return Options{HandlerAttempts: 1, RetryBase: time.Millisecond, MaxDeliveries: 3}
}

func encode(t *testing.T, e events.Event) []byte {
	t.Helper()
	body, err := events.Encode(e, time.Now())
	require.NoError(t, err)
	return body
}

func startMemory(t *testing.T, topic events.Type, h Handler) *MemoryBus {
	t.Helper()
	b := NewMemoryBus(testOptions(), metrics.New(), zerolog.Nop())
	require.NoError(t, b.Subscribe(topic, h))
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b
}

func TestMemoryBus_Delivers(t *testing.T) {
	got := make(chan string, 1)
	b := startMemory(t, events.TypeSpawnRequested, func(_ context.Context, evt events.Event) error {
		got <- evt.(events.SpawnRequested).MatchID
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), string(events.TypeSpawnRequested), encode(t, events.SpawnRequested{MatchID: "m1"})))

	select {
	case id := <-got:
		assert.Equal(t, "m1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, b.DeadLetters())
}

func TestMemoryBus_ValidationFailureDeadLetters(t *testing.T) {
	var calls atomic.Int32
	b := startMemory(t, events.TypeUserLogin, func(context.Context, events.Event) error {
		calls.Add(1)
		return failure.Validation("unknown user")
	})

	require.NoError(t, b.Publish(context.Background(), string(events.TypeUserLogin), encode(t, events.UserLogin{UserID: "u1"})))

	require.Eventually(t, func() bool { return len(b.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, string(events.TypeUserLogin), b.DeadLetters()[0].Topic)
}

func TestMemoryBus_MalformedBodyDeadLetters(t *testing.T) {
	b := startMemory(t, events.TypeUserLogin, func(context.Context, events.Event) error {
		t.Error("handler must not run for malformed input")
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), string(events.TypeUserLogin), []byte("garbage")))
	require.Eventually(t, func() bool { return len(b.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestMemoryBus_TransientFailureRedelivered(t *testing.T) {
	var calls atomic.Int32
	b := startMemory(t, events.TypeUserLogin, func(context.Context, events.Event) error {
		if calls.Add(1) < 3 {
			return failure.Transient(nil, "db busy")
		}
		return nil
	})

	require.NoError(t, b.Publish(context.Background(), string(events.TypeUserLogin), encode(t, events.UserLogin{UserID: "u1"})))

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, b.DeadLetters())
}

func TestMemoryBus_GivesUpAfterMaxDeliveries(t *testing.T) {
	var calls atomic.Int32
	b := startMemory(t, events.TypeUserLogin, func(context.Context, events.Event) error {
		calls.Add(1)
		return failure.Transient(nil, "still busy")
	})

	require.NoError(t, b.Publish(context.Background(), string(events.TypeUserLogin), encode(t, events.UserLogin{UserID: "u1"})))

	require.Eventually(t, func() bool { return len(b.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMemoryBus_BusinessFailureAcknowledged(t *testing.T) {
	var calls atomic.Int32
	b := startMemory(t, events.TypeMatchCompleted, func(context.Context, events.Event) error {
		calls.Add(1)
		return failure.Business("match cancelled")
	})

	body := encode(t, events.MatchCompleted{MatchID: "m1", Stats: []events.PlayerStat{{UserID: "u1"}}})
	require.NoError(t, b.Publish(context.Background(), string(events.TypeMatchCompleted), body))

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, b.DeadLetters())
}

func TestMemoryBus_DropsWithoutSubscriber(t *testing.T) {
	b := startMemory(t, events.TypeUserLogin, func(context.Context, events.Event) error { return nil })
	assert.NoError(t, b.Publish(context.Background(), string(events.TypeWalletReward), []byte("{}")))
	assert.Empty(t, b.DeadLetters())
}

func TestMemoryBus_SingleHandlerPerTopic(t *testing.T) {
	b := NewMemoryBus(testOptions(), nil, zerolog.Nop())
	noop := func(context.Context, events.Event) error { return nil }
	require.NoError(t, b.Subscribe(events.TypeUserLogin, noop))
	assert.Error(t, b.Subscribe(events.TypeUserLogin, noop))
}

type loginVisitor struct {
	users []string
}

func (v *loginVisitor) VisitUserLogin(_ context.Context, e events.UserLogin) error {
	v.users = append(v.users, e.UserID)
	return nil
}

func (*loginVisitor) VisitSpawnRequested(context.Context, events.SpawnRequested) error {
	return events.Unsupported(events.TypeSpawnRequested)
}

func (*loginVisitor) VisitServerSpawned(context.Context, events.ServerSpawned) error {
	return events.Unsupported(events.TypeServerSpawned)
}

func (*loginVisitor) VisitMatchCompleted(context.Context, events.MatchCompleted) error {
	return events.Unsupported(events.TypeMatchCompleted)
}

func (*loginVisitor) VisitAntiCheatFlagged(context.Context, events.AntiCheatFlagged) error {
	return events.Unsupported(events.TypeAntiCheatFlagged)
}

func (*loginVisitor) VisitWalletReward(context.Context, events.WalletReward) error {
	return events.Unsupported(events.TypeWalletReward)
}

func TestVisitorHandler(t *testing.T) {
	v := &loginVisitor{}
	h := VisitorHandler(v)

	require.NoError(t, h(context.Background(), events.UserLogin{UserID: "u1"}))
	assert.Equal(t, []string{"u1"}, v.users)

	err := h(context.Background(), events.WalletReward{MatchID: "m1"})
	assert.Equal(t, failure.KindValidation, failure.Classify(err))
}
