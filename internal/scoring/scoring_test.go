package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"matchcore/internal/domain"
)

func TestScoreHeartbeat(t *testing.T) {
	tests := []struct {
		name      string
		processes []string
		chat      []string
		want      float64
	}{
		{"clean", []string{"steam.exe", "discord.exe"}, []string{"gg wp"}, 0},
		{"suspicious process", []string{"aimbot.exe"}, nil, 70},
		{"toxic chat", nil, []string{"you're such a hacker"}, 15},
		{"both signals", []string{"aimbot.exe"}, []string{"cheat much?"}, 85},
		{"process match is case insensitive", []string{"OverLay64.EXE"}, nil, 70},
		{"one toxic line is enough", nil, []string{"hi", "WALLHACK lol", "cheat"}, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreHeartbeat(tt.processes, tt.chat), 0.0001)
		})
	}
}

func TestScoreHeartbeat_NeverExceedsMax(t *testing.T) {
	procs := []string{"cheat.exe", "inject.dll", "overlay"}
	chat := []string{"hack", "aimbot", "wallhack"}
	assert.LessOrEqual(t, ScoreHeartbeat(procs, chat), 100.0)
}

func TestIsClientAnomaly(t *testing.T) {
	assert.False(t, IsClientAnomaly(50))
	assert.True(t, IsClientAnomaly(50.01))
	assert.True(t, IsClientAnomaly(70))
	assert.False(t, IsClientAnomaly(15))
}

func TestSmurfScore(t *testing.T) {
	stat := domain.MatchPlayerStat{Kills: 20, Deaths: 2, Headshots: 10, Clutches: 3}
	score := SmurfScore(stat)
	assert.InDelta(t, 100.0, score, 0.0001)
	assert.True(t, IsSmurfRisk(score))

	// kd 1 -> 20, hs 0.5 -> 15
	assert.InDelta(t, 35.0, SmurfScore(domain.MatchPlayerStat{Kills: 10, Deaths: 10, Headshots: 5}), 0.0001)

	// zero deaths and zero kills do not divide by zero
	assert.InDelta(t, 0.0, SmurfScore(domain.MatchPlayerStat{}), 0.0001)
	assert.InDelta(t, 60.0, SmurfScore(domain.MatchPlayerStat{Kills: 3}), 0.0001)
	assert.False(t, IsSmurfRisk(75))
}

func TestRatingDelta(t *testing.T) {
	assert.Equal(t, 25, RatingDelta(true, false))
	assert.Equal(t, -15, RatingDelta(false, false))
	assert.Equal(t, 27, RatingDelta(true, true))
	assert.Equal(t, -17, RatingDelta(false, true))
}

func TestApplyRating_Clamps(t *testing.T) {
	assert.Equal(t, 0, ApplyRating(10, false, false))
	assert.Equal(t, 5000, ApplyRating(4990, true, true))
	assert.Equal(t, 1025, ApplyRating(1000, true, false))
}

func TestXPGain(t *testing.T) {
	assert.Equal(t, 100, XPGain(true, false))
	assert.Equal(t, 50, XPGain(false, false))
	assert.Equal(t, 120, XPGain(true, true))
	assert.Equal(t, 60, XPGain(false, true))
}

func TestReward(t *testing.T) {
	assert.True(t, Reward(true).Equal(decimal.RequireFromString("0.10")))
	assert.True(t, Reward(false).Equal(decimal.RequireFromString("0.02")))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 1, Level(1, 0))
	assert.Equal(t, 1, Level(1, 199))
	assert.Equal(t, 2, Level(1, 200))
	assert.Equal(t, 6, Level(1, 1000))
	assert.Equal(t, 7, Level(7, 400))
}
