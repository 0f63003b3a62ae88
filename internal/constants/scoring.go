package constants

// Match shape.
const (
	TeamSize  = 5
	MatchSize = 2 * TeamSize
)

// Rating bounds.
const (
	MinRating     = 0
	MaxRating     = 5000
	DefaultRating = 1000
)

// Settlement deltas. VIP multipliers are expressed in percent so they can be
// applied with integer math before flooring.
const (
	WinRatingDelta  = 25
	LossRatingDelta = -15
	VIPRatingPct    = 110

	WinXP    = 100
	LossXP   = 50
	VIPXPPct = 120

	XPPerLevel = 200

	WinReward  = "0.10"
	LossReward = "0.02"

	LedgerReasonMatchResult = "match result"
)

// Anti-cheat heartbeat scoring.
const (
	ProcessSuspicion       = 70.0
	ChatToxicity           = 0.5
	ChatToxicityWeight     = 30.0
	ClientAnomalyThreshold = 50.0
	MaxAnomalyScore        = 100.0
)

// Smurf scoring.
const (
	SmurfKDWeight       = 20.0
	SmurfHeadshotWeight = 30.0
	SmurfClutchWeight   = 10.0
	SmurfRiskThreshold  = 75.0
)

const (
	WalletHistoryLimit = 25
	GameServerPort     = 27015
)
