// Package rank maps a rating onto the fifteen tier/division bands.
package rank

import "matchcore/internal/constants"

type Tier string

const (
	Beginner Tier = "Beginner"
	Rookie   Tier = "Rookie"
	Pro      Tier = "Pro"
	Ace      Tier = "Ace"
	Legend   Tier = "Legend"
)

type Rank struct {
	Tier      Tier   `json:"tier"`
	Division  int    `json:"division"`
	MinRating int    `json:"minRating"`
	MaxRating int    `json:"maxRating"`
	Color     string `json:"color"`
}

func (r Rank) Name() string {
	return string(r.Tier) + " " + roman[r.Division]
}

var roman = map[int]string{1: "I", 2: "II", 3: "III"}

// Bounds are inclusive on both ends and adjacent tiers share their edge
// value; thresholds is scanned in order so the lower tier wins a shared edge.
var thresholds = []Rank{
	{Beginner, 1, 0, 166, "#808080"},
	{Beginner, 2, 167, 333, "#808080"},
	{Beginner, 3, 334, 500, "#808080"},
	{Rookie, 1, 500, 666, "#90EE90"},
	{Rookie, 2, 667, 833, "#90EE90"},
	{Rookie, 3, 834, 1000, "#90EE90"},
	{Pro, 1, 1000, 1333, "#4169E1"},
	{Pro, 2, 1334, 1666, "#4169E1"},
	{Pro, 3, 1667, 2000, "#4169E1"},
	{Ace, 1, 2000, 2500, "#FFD700"},
	{Ace, 2, 2501, 3000, "#FFD700"},
	{Ace, 3, 3001, 3500, "#FFD700"},
	{Legend, 1, 3500, 4000, "#FF1493"},
	{Legend, 2, 4001, 4500, "#FF1493"},
	{Legend, 3, 4501, 5000, "#FF1493"},
}

// Thresholds returns a copy of the band table.
func Thresholds() []Rank {
	out := make([]Rank, len(thresholds))
	copy(out, thresholds)
	return out
}

// Clamp bounds a rating to the valid range.
func Clamp(rating int) int {
	return max(constants.MinRating, min(constants.MaxRating, rating))
}

// Of returns the band containing rating. Out-of-range ratings are clamped first.
func Of(rating int) Rank {
	rating = Clamp(rating)
	for _, t := range thresholds {
		if rating >= t.MinRating && rating <= t.MaxRating {
			return t
		}
	}
	return thresholds[len(thresholds)-1]
}

type Progress struct {
	Rank       Rank    `json:"rank"`
	Rating     int     `json:"rating"`
	Next       int     `json:"next"`
	Percentage float64 `json:"percentage"`
}

// ProgressOf reports how far rating is through its current division.
func ProgressOf(rating int) Progress {
	rating = Clamp(rating)
	r := Of(rating)
	span := r.MaxRating - r.MinRating
	pct := 100.0
	if span > 0 {
		pct = float64(rating-r.MinRating) / float64(span) * 100
	}
	return Progress{Rank: r, Rating: rating, Next: r.MaxRating, Percentage: pct}
}
