package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf_CoversEveryRating(t *testing.T) {
	for rating := 0; rating <= 5000; rating++ {
		matches := 0
		for _, band := range thresholds {
			if rating >= band.MinRating && rating <= band.MaxRating {
				matches++
			}
		}
		require.GreaterOrEqual(t, matches, 1, "rating %d has no band", rating)

		got := Of(rating)
		require.True(t, rating >= got.MinRating && rating <= got.MaxRating, "rating %d outside %s", rating, got.Name())
	}
}

func TestOf_SharedEdgesResolveToLowerTier(t *testing.T) {
	cases := map[int]string{
		500:  "Beginner III",
		1000: "Rookie III",
		2000: "Pro III",
		3500: "Ace III",
	}
	for rating, want := range cases {
		assert.Equal(t, want, Of(rating).Name(), "rating %d", rating)
	}
}

func TestOf_Bands(t *testing.T) {
	assert.Equal(t, "Beginner I", Of(0).Name())
	assert.Equal(t, "Beginner II", Of(167).Name())
	assert.Equal(t, "Rookie I", Of(501).Name())
	assert.Equal(t, "Pro II", Of(1500).Name())
	assert.Equal(t, "Ace II", Of(2501).Name())
	assert.Equal(t, "Legend III", Of(5000).Name())
	assert.Equal(t, "#FF1493", Of(4800).Color)
}

func TestOf_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, Of(0), Of(-40))
	assert.Equal(t, Of(5000), Of(9999))
}

func TestThresholds_FifteenContiguousRows(t *testing.T) {
	rows := Thresholds()
	require.Len(t, rows, 15)
	assert.Equal(t, 0, rows[0].MinRating)
	assert.Equal(t, 5000, rows[len(rows)-1].MaxRating)
	for i := 1; i < len(rows); i++ {
		gap := rows[i].MinRating - rows[i-1].MaxRating
		assert.True(t, gap == 0 || gap == 1, "gap between %s and %s", rows[i-1].Name(), rows[i].Name())
	}
}

func TestProgressOf(t *testing.T) {
	p := ProgressOf(1500)
	assert.Equal(t, "Pro II", p.Rank.Name())
	assert.Equal(t, 1666, p.Next)
	assert.InDelta(t, 50.0, p.Percentage, 0.5)

	assert.InDelta(t, 0.0, ProgressOf(0).Percentage, 0.0001)
	assert.InDelta(t, 100.0, ProgressOf(5000).Percentage, 0.0001)
}
