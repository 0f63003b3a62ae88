package domain

import "github.com/rotisserie/eris"

var (
	ErrPlayerNotFound   = eris.New("player not found")
	ErrMatchNotFound    = eris.New("match not found")
	ErrTicketNotFound   = eris.New("ticket not found")
	ErrServerNotFound   = eris.New("server instance not found")
	ErrAlreadyQueued    = eris.New("already in queue")
	ErrNotEnoughPlayers = eris.New("not enough players in pool")
	ErrUnbalancedTeams  = eris.New("teams could not be balanced")
	ErrTicketConflict   = eris.New("ticket changed during match formation")
)
