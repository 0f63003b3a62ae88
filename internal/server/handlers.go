package server

import (
	"net/http"

	"matchcore/internal/domain"
	"matchcore/internal/events"
	"matchcore/internal/failure"
	"matchcore/internal/service"

	"github.com/gorilla/mux"
)

type AntiCheatRoutes struct {
	ac *service.AntiCheat
}

func NewAntiCheatRoutes(ac *service.AntiCheat) *AntiCheatRoutes {
	return &AntiCheatRoutes{ac: ac}
}

func (h *AntiCheatRoutes) Register(r *mux.Router) {
	r.HandleFunc("/heartbeat", h.heartbeat).Methods(http.MethodPost)
}

func (h *AntiCheatRoutes) heartbeat(w http.ResponseWriter, r *http.Request) {
	var hb domain.Heartbeat
	if err := decode(r, &hb); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.ac.Heartbeat(r.Context(), hb)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ProvisioningRoutes struct {
	coordinator *service.Coordinator
}

func NewProvisioningRoutes(c *service.Coordinator) *ProvisioningRoutes {
	return &ProvisioningRoutes{coordinator: c}
}

func (h *ProvisioningRoutes) Register(r *mux.Router) {
	r.HandleFunc("/spawn/test", h.spawnTest).Methods(http.MethodPost)
	r.HandleFunc("/stop", h.stop).Methods(http.MethodPost)
	r.HandleFunc("/delete", h.delete).Methods(http.MethodDelete)
}

type instanceRequest struct {
	InstanceID string `json:"instanceId"`
}

func (h *ProvisioningRoutes) spawnTest(w http.ResponseWriter, r *http.Request) {
	si, err := h.coordinator.SpawnTest(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, si)
}

func (h *ProvisioningRoutes) stop(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	si, err := h.coordinator.StopInstance(r.Context(), req.InstanceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, si)
}

func (h *ProvisioningRoutes) delete(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	si, err := h.coordinator.DeleteInstance(r.Context(), req.InstanceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, si)
}

type QueueRoutes struct {
	queue *service.QueueService
}

func NewQueueRoutes(q *service.QueueService) *QueueRoutes {
	return &QueueRoutes{queue: q}
}

func (h *QueueRoutes) Register(r *mux.Router) {
	s := r.PathPrefix("/queue").Subrouter()
	s.HandleFunc("/join", h.join).Methods(http.MethodPost)
	s.HandleFunc("/leave", h.leave).Methods(http.MethodPost)
	s.HandleFunc("/status", h.status).Methods(http.MethodGet)
}

type joinRequest struct {
	UserID string `json:"userId"`
	Ladder string `json:"ladderType"`
	Region string `json:"region"`
}

func (h *QueueRoutes) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ticket, err := h.queue.Join(r.Context(), req.UserID, req.Ladder, req.Region)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *QueueRoutes) leave(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	left, err := h.queue.Leave(r.Context(), req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"left": left})
}

func (h *QueueRoutes) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.queue.Status(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SettlementRoutes accepts match results and serves the state settlement
// produces.
type SettlementRoutes struct {
	reporter *service.Reporter
	players  *service.PlayerService
}

func NewSettlementRoutes(reporter *service.Reporter, players *service.PlayerService) *SettlementRoutes {
	return &SettlementRoutes{reporter: reporter, players: players}
}

func (h *SettlementRoutes) Register(r *mux.Router) {
	r.HandleFunc("/matches/{matchId}/result", h.result).Methods(http.MethodPost)

	p := r.PathPrefix("/players/{userId}").Subrouter()
	p.HandleFunc("/rank", h.rank).Methods(http.MethodGet)
	p.HandleFunc("/wallet", h.wallet).Methods(http.MethodGet)
	p.HandleFunc("/profile", h.profile).Methods(http.MethodGet)
}

func (h *SettlementRoutes) result(w http.ResponseWriter, r *http.Request) {
	var report events.MatchCompleted
	if err := decode(r, &report); err != nil {
		writeError(w, r, err)
		return
	}
	matchID := mux.Vars(r)["matchId"]
	if report.MatchID != "" && report.MatchID != matchID {
		writeError(w, r, failure.Validation("body matchId %q does not match path", report.MatchID))
		return
	}
	report.MatchID = matchID

	if err := h.reporter.Report(r.Context(), report); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "matchId": matchID})
}

func (h *SettlementRoutes) rank(w http.ResponseWriter, r *http.Request) {
	rk, err := h.players.Rank(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rk)
}

func (h *SettlementRoutes) wallet(w http.ResponseWriter, r *http.Request) {
	wv, err := h.players.Wallet(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wv)
}

func (h *SettlementRoutes) profile(w http.ResponseWriter, r *http.Request) {
	p, err := h.players.Profile(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
