package handlers

import (
	"log/slog"
	"net/http"
	"taskpulse/internal/core/services"
	"taskpulse/pkg/logging"
)

type AuthHandler struct {
	log      *slog.Logger
	userSvc  *services.UserService
	tokenSvc *services.TokenService
}

func NewAuthHandler(log *slog.Logger, u *services.UserService, t *services.TokenService) *AuthHandler {
	return &AuthHandler{log: log, userSvc: u, tokenSvc: t}
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.log)
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	user, err := h.userSvc.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		writeError(r.Context(), w, log, "auth handler - register", err)
		return
	}
	h.issue(w, r, log, http.StatusCreated, user.ID)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context(), h.log)
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	user, err := h.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(r.Context(), w, log, "auth handler - login", err)
		return
	}
	h.issue(w, r, log, http.StatusOK, user.ID)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, userID int64) {
	token, err := h.tokenSvc.GenerateToken(userID)
	if err != nil {
		writeError(r.Context(), w, log, "auth handler - generate token", err)
		return
	}
	log.InfoContext(r.Context(), "auth handler - token send success", logging.Identity(userID))
	writeJSON(w, status, map[string]any{
		"token":  token,
		"userId": userID,
	})
}
