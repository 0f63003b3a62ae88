package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"matchcore/internal/constants"
	"matchcore/internal/rank"
)

var (
	winReward  = decimal.RequireFromString(constants.WinReward)
	lossReward = decimal.RequireFromString(constants.LossReward)
)

// RatingDelta is the signed rating change for one result. VIP deltas are
// scaled after the sign is fixed, so VIP losses are larger in magnitude too.
// The scaled value is floored toward negative infinity: a -15 loss becomes -17.
func RatingDelta(won, vip bool) int {
	delta := constants.LossRatingDelta
	if won {
		delta = constants.WinRatingDelta
	}
	if vip {
		delta = floorPct(delta, constants.VIPRatingPct)
	}
	return delta
}

// ApplyRating returns the new rating clamped to the valid range.
func ApplyRating(rating int, won, vip bool) int {
	return rank.Clamp(rating + RatingDelta(won, vip))
}

func XPGain(won, vip bool) int {
	xp := constants.LossXP
	if won {
		xp = constants.WinXP
	}
	if vip {
		xp = floorPct(xp, constants.VIPXPPct)
	}
	return xp
}

func Reward(won bool) decimal.Decimal {
	if won {
		return winReward
	}
	return lossReward
}

// Level never decreases: the recomputed level only replaces current when higher.
func Level(current, xp int) int {
	return max(current, xp/constants.XPPerLevel+1)
}

func floorPct(v, pct int) int {
	return int(math.Floor(float64(v*pct) / 100))
}
