package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketWaiting   TicketStatus = "WAITING"
	TicketMatched   TicketStatus = "MATCHED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type MatchStatus string

const (
	MatchPending      MatchStatus = "PENDING"
	MatchProvisioning MatchStatus = "PROVISIONING"
	MatchActive       MatchStatus = "ACTIVE"
	MatchFinished     MatchStatus = "FINISHED"
	MatchCancelled    MatchStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed.
func (s MatchStatus) Terminal() bool {
	return s == MatchFinished || s == MatchCancelled
}

type ServerStatus string

const (
	ServerStarting ServerStatus = "starting"
	ServerActive   ServerStatus = "active"
	ServerStopping ServerStatus = "stopping"
	ServerStopped  ServerStatus = "stopped"
)

type LedgerKind string

const (
	LedgerEarn   LedgerKind = "earn"
	LedgerSpend  LedgerKind = "spend"
	LedgerAdjust LedgerKind = "adjust"
)

const (
	FlagClientAnomaly = "client_anomaly"
	FlagSmurfRisk     = "smurf_risk"
)

// Maps is the fixed pool a new match draws from.
var Maps = []string{"Mirage", "Inferno", "Ancient", "Nuke", "Anubis", "Vertigo", "Dust2"}

type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	XP        int       `json:"xp"`
	Level     int       `json:"level"`
	IsVIP     bool      `json:"isVip"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type QueueTicket struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Ladder       string       `json:"ladderType"`
	Region       string       `json:"region"`
	RatingAtJoin int          `json:"ratingAtJoin"`
	Status       TicketStatus `json:"status"`
	JoinedAt     time.Time    `json:"joinedAt"`
	MatchID      *string      `json:"matchId,omitempty"`
}

// Candidate is a WAITING ticket joined with the owner's current rating and VIP flag.
type Candidate struct {
	TicketID string
	UserID   string
	Rating   int
	IsVIP    bool
	JoinedAt time.Time
}

type Teams struct {
	Team1 []Candidate
	Team2 []Candidate
}

type Match struct {
	ID                    string      `json:"id"`
	Ladder                string      `json:"ladderType"`
	Region                string      `json:"region"`
	Map                   string      `json:"map"`
	ServerInstanceID      *string     `json:"serverInstanceId,omitempty"`
	Status                MatchStatus `json:"status"`
	WinnerTeam            *int        `json:"winnerTeam,omitempty"`
	StartedAt             time.Time   `json:"startedAt"`
	ProvisioningStartedAt *time.Time  `json:"provisioningStartedAt,omitempty"`
	EndedAt               *time.Time  `json:"endedAt,omitempty"`
}

type MatchPlayerStat struct {
	MatchID   string `json:"matchId"`
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

type Wallet struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type LedgerEntry struct {
	ID        string          `json:"id"`
	WalletID  string          `json:"walletId"`
	Amount    decimal.Decimal `json:"amount"`
	Kind      LedgerKind      `json:"kind"`
	Reason    string          `json:"reason"`
	Ref       string          `json:"ref,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type AnomalyFlag struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	MatchID   *string   `json:"matchId,omitempty"`
	Score     float64   `json:"score"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
}

type SmurfScore struct {
	UserID        string    `json:"userId"`
	Score         float64   `json:"score"`
	MatchID       string    `json:"matchId"`
	LastEvaluated time.Time `json:"lastEvaluated"`
}

type ServerInstance struct {
	ID                 string       `json:"id"`
	Provider           string       `json:"provider"`
	ProviderInstanceID string       `json:"providerInstanceId"`
	MatchID            *string      `json:"matchId,omitempty"`
	Region             string       `json:"region"`
	IP                 string       `json:"ip"`
	Port               int          `json:"port"`
	Status             ServerStatus `json:"status"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

// Heartbeat is the client telemetry sample scored by anti-cheat.
type Heartbeat struct {
	UserID    string   `json:"userId"`
	MatchID   string   `json:"matchId"`
	Processes []string `json:"processes"`
	Chat      []string `json:"chat"`
}

// PlayerSettlement is the per-player result recorded when a match is settled.
type PlayerSettlement struct {
	MatchID      string          `json:"matchId"`
	UserID       string          `json:"userId"`
	RatingBefore int             `json:"ratingBefore"`
	RatingAfter  int             `json:"ratingAfter"`
	XPGained     int             `json:"xpGained"`
	Reward       decimal.Decimal `json:"reward"`
	SmurfScore   float64         `json:"smurfScore"`
}
