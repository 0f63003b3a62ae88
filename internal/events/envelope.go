package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"matchcore/internal/failure"
)

const Version = 1

type Envelope struct {
	Type      Type            `json:"type"`
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Encode wraps e in an envelope stamped with now.
func Encode(e Event, now time.Time) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{
		Type:      e.Type(),
		Version:   Version,
		Payload:   payload,
		Timestamp: now.UTC(),
	})
}

// Decode parses and validates an envelope. All failures are validation errors.
func Decode(data []byte) (Event, Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, env, failure.Validation("malformed envelope: %v", err)
	}
	if env.Version != Version {
		return nil, env, failure.Validation("unsupported version %d for %s", env.Version, env.Type)
	}

	var (
		evt Event
		err error
	)
	switch env.Type {
	case TypeSpawnRequested:
		evt, err = decodePayload[SpawnRequested](env)
	case TypeServerSpawned:
		evt, err = decodePayload[ServerSpawned](env)
	case TypeMatchCompleted:
		evt, err = decodePayload[MatchCompleted](env)
	case TypeAntiCheatFlagged:
		evt, err = decodePayload[AntiCheatFlagged](env)
	case TypeUserLogin:
		evt, err = decodePayload[UserLogin](env)
	case TypeWalletReward:
		evt, err = decodePayload[WalletReward](env)
	default:
		return nil, env, failure.Validation("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, env, err
	}
	if err := evt.Validate(); err != nil {
		return nil, env, err
	}
	return evt, env, nil
}

func decodePayload[T Event](env Envelope) (Event, error) {
	var v T
	if len(env.Payload) == 0 {
		return nil, failure.Validation("%s: empty payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return nil, failure.Validation("%s: malformed payload: %v", env.Type, err)
	}
	return v, nil
}
