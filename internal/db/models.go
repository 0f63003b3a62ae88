package db

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Player struct {
	ID        string
	Username  string
	Rating    int64
	Xp        int64
	Level     int64
	IsVip     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QueueTicket struct {
	ID           string
	UserID       string
	Ladder       string
	Region       string
	RatingAtJoin int64
	Status       string
	JoinedAt     time.Time
	MatchID      sql.NullString
}

type Candidate struct {
	TicketID string
	UserID   string
	Rating   int64
	IsVip    bool
	JoinedAt time.Time
}

type Match struct {
	ID                    string
	Ladder                string
	Region                string
	Map                   string
	ServerInstanceID      sql.NullString
	Status                string
	WinnerTeam            sql.NullInt64
	StartedAt             time.Time
	ProvisioningStartedAt sql.NullTime
	EndedAt               sql.NullTime
}

type MatchPlayerStat struct {
	MatchID   string
	UserID    string
	Team      int64
	Kills     int64
	Deaths    int64
	Assists   int64
	Headshots int64
	Mvps      int64
	Clutches  int64
	IsWinner  bool
}

type Settlement struct {
	MatchID      string
	UserID       string
	RatingBefore int64
	RatingAfter  int64
	XpGained     int64
	Reward       decimal.Decimal
	SmurfScore   float64
	CreatedAt    time.Time
}

type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

type LedgerEntry struct {
	ID        string
	WalletID  string
	Amount    decimal.Decimal
	Kind      string
	Reason    string
	Ref       string
	CreatedAt time.Time
}

type AnomalyFlag struct {
	ID        string
	UserID    string
	MatchID   sql.NullString
	Score     float64
	Label     string
	CreatedAt time.Time
}

type SmurfScore struct {
	UserID        string
	Score         float64
	MatchID       string
	LastEvaluated time.Time
}

type ServerInstance struct {
	ID                 string
	Provider           string
	ProviderInstanceID string
	MatchID            sql.NullString
	Region             string
	Ip                 string
	Port               int64
	Status             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type OutboxEvent struct {
	ID        int64
	Topic     string
	Payload   []byte
	CreatedAt time.Time
}
