package service

import (
	"cmp"
	"fmt"
	"slices"

	"matchcore/internal/constants"
	"matchcore/internal/domain"
)

// BalanceTeams splits exactly MatchSize candidates into two teams of
// TeamSize. The first two VIPs by join order seed team 1 and team 2. Everyone
// else is sorted by rating, highest first, and dealt alternately starting
// with the smaller team. This approximates equal team ratings; it does not
// search for the optimal split.
func BalanceTeams(candidates []domain.Candidate) (domain.Teams, error) {
	if len(candidates) != constants.MatchSize {
		return domain.Teams{}, fmt.Errorf("%w: need %d candidates, got %d",
			domain.ErrUnbalancedTeams, constants.MatchSize, len(candidates))
	}

	byJoin := slices.Clone(candidates)
	slices.SortStableFunc(byJoin, joinOrder)

	var teams [2][]domain.Candidate
	var rest []domain.Candidate
	seeded := 0
	for _, c := range byJoin {
		if c.IsVIP && seeded < 2 {
			teams[seeded] = append(teams[seeded], c)
			seeded++
			continue
		}
		rest = append(rest, c)
	}

	slices.SortStableFunc(rest, func(a, b domain.Candidate) int {
		if a.Rating != b.Rating {
			return cmp.Compare(b.Rating, a.Rating)
		}
		return joinOrder(a, b)
	})

	start := 0
	if len(teams[1]) < len(teams[0]) {
		start = 1
	}
	for i, c := range rest {
		t := (start + i) % 2
		teams[t] = append(teams[t], c)
	}

	for t := range teams {
		if len(teams[t]) > constants.TeamSize {
			teams[t] = teams[t][:constants.TeamSize]
		}
		if len(teams[t]) < constants.TeamSize {
			return domain.Teams{}, fmt.Errorf("%w: team %d has %d players", domain.ErrUnbalancedTeams, t+1, len(teams[t]))
		}
	}
	return domain.Teams{Team1: teams[0], Team2: teams[1]}, nil
}

func joinOrder(a, b domain.Candidate) int {
	if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.TicketID, b.TicketID)
}

// TeamRating sums the ratings of a team.
func TeamRating(team []domain.Candidate) int {
	total := 0
	for _, c := range team {
		total += c.Rating
	}
	return total
}
