// Package events defines the closed set of messages carried on the bus.
//
// Every payload travels inside an Envelope. Decode is the only way to turn
// bytes back into an Event, and it rejects unknown types and versions.
// Consumers implement every Visitor method, returning Unsupported for the
// events they do not handle, so a new variant fails to compile until each
// consumer decides what to do with it.
package events

import (
	"context"

	"matchcore/internal/failure"
)

type Type string

const (
	TypeSpawnRequested   Type = "server.spawn.requested"
	TypeServerSpawned    Type = "server.spawned"
	TypeMatchCompleted   Type = "match.completed"
	TypeAntiCheatFlagged Type = "ac.flagged"
	TypeUserLogin        Type = "user.login"
	TypeWalletReward     Type = "wallet.reward"
)

// Types lists every topic in the union.
var Types = []Type{
	TypeSpawnRequested,
	TypeServerSpawned,
	TypeMatchCompleted,
	TypeAntiCheatFlagged,
	TypeUserLogin,
	TypeWalletReward,
}

type Event interface {
	Type() Type
	Validate() error
	Accept(ctx context.Context, v Visitor) error
	sealed()
}

type Visitor interface {
	VisitSpawnRequested(ctx context.Context, e SpawnRequested) error
	VisitServerSpawned(ctx context.Context, e ServerSpawned) error
	VisitMatchCompleted(ctx context.Context, e MatchCompleted) error
	VisitAntiCheatFlagged(ctx context.Context, e AntiCheatFlagged) error
	VisitUserLogin(ctx context.Context, e UserLogin) error
	VisitWalletReward(ctx context.Context, e WalletReward) error
}

type SpawnRequested struct {
	MatchID string `json:"matchId"`
}

type ServerSpawned struct {
	ServerInstanceID string `json:"serverInstanceId"`
	MatchID          string `json:"matchId"`
}

type PlayerStat struct {
	UserID    string `json:"userId"`
	Team      int    `json:"team"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	Assists   int    `json:"assists"`
	Headshots int    `json:"headshots"`
	MVPs      int    `json:"mvps"`
	Clutches  int    `json:"clutches"`
	IsWinner  bool   `json:"isWinner"`
}

type MatchCompleted struct {
	MatchID    string       `json:"matchId"`
	Stats      []PlayerStat `json:"stats"`
	WinnerTeam *int         `json:"winnerTeam,omitempty"`
}

type AntiCheatFlagged struct {
	UserID  string  `json:"userId"`
	MatchID string  `json:"matchId"`
	Score   float64 `json:"score"`
}

type UserLogin struct {
	UserID string `json:"userId"`
}

type WalletReward struct {
	MatchID string `json:"matchId"`
}

func (SpawnRequested) Type() Type   { return TypeSpawnRequested }
func (ServerSpawned) Type() Type    { return TypeServerSpawned }
func (MatchCompleted) Type() Type   { return TypeMatchCompleted }
func (AntiCheatFlagged) Type() Type { return TypeAntiCheatFlagged }
func (UserLogin) Type() Type        { return TypeUserLogin }
func (WalletReward) Type() Type     { return TypeWalletReward }

func (SpawnRequested) sealed()   {}
func (ServerSpawned) sealed()    {}
func (MatchCompleted) sealed()   {}
func (AntiCheatFlagged) sealed() {}
func (UserLogin) sealed()        {}
func (WalletReward) sealed()     {}

func (e SpawnRequested) Accept(ctx context.Context, v Visitor) error {
	return v.VisitSpawnRequested(ctx, e)
}

func (e ServerSpawned) Accept(ctx context.Context, v Visitor) error {
	return v.VisitServerSpawned(ctx, e)
}

func (e MatchCompleted) Accept(ctx context.Context, v Visitor) error {
	return v.VisitMatchCompleted(ctx, e)
}

func (e AntiCheatFlagged) Accept(ctx context.Context, v Visitor) error {
	return v.VisitAntiCheatFlagged(ctx, e)
}

func (e UserLogin) Accept(ctx context.Context, v Visitor) error {
	return v.VisitUserLogin(ctx, e)
}

func (e WalletReward) Accept(ctx context.Context, v Visitor) error {
	return v.VisitWalletReward(ctx, e)
}

func (e SpawnRequested) Validate() error {
	if e.MatchID == "" {
		return failure.Validation("%s: matchId is required", e.Type())
	}
	return nil
}

func (e ServerSpawned) Validate() error {
	if e.MatchID == "" || e.ServerInstanceID == "" {
		return failure.Validation("%s: matchId and serverInstanceId are required", e.Type())
	}
	return nil
}

func (e MatchCompleted) Validate() error {
	if e.MatchID == "" {
		return failure.Validation("%s: matchId is required", e.Type())
	}
	if len(e.Stats) == 0 {
		return failure.Validation("%s: stats are required", e.Type())
	}
	if e.WinnerTeam != nil && *e.WinnerTeam != 1 && *e.WinnerTeam != 2 {
		return failure.Validation("%s: winnerTeam must be 1 or 2", e.Type())
	}
	seen := make(map[string]struct{}, len(e.Stats))
	for _, s := range e.Stats {
		if s.UserID == "" {
			return failure.Validation("%s: stat without userId", e.Type())
		}
		if _, dup := seen[s.UserID]; dup {
			return failure.Validation("%s: duplicate stat for %s", e.Type(), s.UserID)
		}
		seen[s.UserID] = struct{}{}
		if s.Kills < 0 || s.Deaths < 0 || s.Assists < 0 || s.Headshots < 0 || s.MVPs < 0 || s.Clutches < 0 {
			return failure.Validation("%s: negative stat for %s", e.Type(), s.UserID)
		}
		if s.Headshots > s.Kills {
			return failure.Validation("%s: more headshots than kills for %s", e.Type(), s.UserID)
		}
	}
	return nil
}

func (e AntiCheatFlagged) Validate() error {
	if e.UserID == "" {
		return failure.Validation("%s: userId is required", e.Type())
	}
	if e.Score < 0 || e.Score > 100 {
		return failure.Validation("%s: score out of range", e.Type())
	}
	return nil
}

func (e UserLogin) Validate() error {
	if e.UserID == "" {
		return failure.Validation("%s: userId is required", e.Type())
	}
	return nil
}

func (e WalletReward) Validate() error {
	if e.MatchID == "" {
		return failure.Validation("%s: matchId is required", e.Type())
	}
	return nil
}

// Unsupported is what a consumer returns for an event type it does not
// handle. The dispatcher treats it as a validation failure and acks.
func Unsupported(t Type) error {
	return failure.Validation("no handler for %s", t)
}
