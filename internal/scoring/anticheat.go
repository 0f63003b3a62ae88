package scoring

import (
	"regexp"
	"strings"

	"matchcore/internal/constants"
)

var suspiciousProcess = regexp.MustCompile(`(?i)cheat|overlay|inject|aimbot|wallhack`)

var chatDenyList = []string{"cheat", "hack", "aimbot", "wallhack"}

// ScoreHeartbeat combines process suspicion and chat toxicity into a 0-100 score.
func ScoreHeartbeat(processes, chat []string) float64 {
	var suspicion float64
	for _, p := range processes {
		if suspiciousProcess.MatchString(p) {
			suspicion = constants.ProcessSuspicion
			break
		}
	}

	var toxicity float64
	for _, line := range chat {
		if containsDenied(line) {
			toxicity = constants.ChatToxicity
			break
		}
	}

	return min(constants.MaxAnomalyScore, suspicion+toxicity*constants.ChatToxicityWeight)
}

// IsClientAnomaly reports whether a heartbeat score must be flagged.
func IsClientAnomaly(score float64) bool {
	return score > constants.ClientAnomalyThreshold
}

func containsDenied(line string) bool {
	lower := strings.ToLower(line)
	for _, word := range chatDenyList {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
