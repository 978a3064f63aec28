package handlers

import (
	"log/slog"
	"net/http"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/core/services"
	"taskpulse/pkg/logging"
)

type TeamHandler struct {
	log   *slog.Logger
	teams *services.TeamService
}

func NewTeamHandler(log *slog.Logger, teams *services.TeamService) *TeamHandler {
	return &TeamHandler{log: log, teams: teams}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.ListTeams(r.Context())
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - list", err)
		return
	}
	writeJSON(w, http.StatusOK, teams)
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teams.CreateTeam(r.Context(), userID, req.Name)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - create", err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (h *TeamHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teams.JoinTeam(r.Context(), userID, req.Code)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - join", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (h *TeamHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.teams.LeaveTeam(r.Context(), userID); err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - leave", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	teamID, ok := pathID(w, r, domain.ErrInvalidTeamID)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	team, err := h.teams.RenameTeam(r.Context(), userID, teamID, req.Name)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - rename", err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// Members lists the caller's own team with presence.
func (h *TeamHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	teamID, ok := pathID(w, r, domain.ErrInvalidTeamID)
	if !ok {
		return
	}
	current, found, err := h.teams.TeamOf(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - members", err)
		return
	}
	if !found || current != teamID {
		writeError(r.Context(), w, h.log, "team handler - members", domain.ErrTeamNotFound)
		return
	}
	members, err := h.teams.CurrentMembers(r.Context(), teamID)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "team handler - members", err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
