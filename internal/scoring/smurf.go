package scoring

import (
	"matchcore/internal/constants"
	"matchcore/internal/domain"
)

// SmurfScore scores a single match stat line. Only that match is considered.
func SmurfScore(stat domain.MatchPlayerStat) float64 {
	kd := float64(stat.Kills) / float64(max(1, stat.Deaths))
	hsRatio := float64(stat.Headshots) / float64(max(1, stat.Kills))
	base := kd*constants.SmurfKDWeight +
		hsRatio*constants.SmurfHeadshotWeight +
		float64(stat.Clutches)*constants.SmurfClutchWeight
	return min(constants.MaxAnomalyScore, base)
}

func IsSmurfRisk(score float64) bool {
	return score > constants.SmurfRiskThreshold
}
