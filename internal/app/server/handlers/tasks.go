package handlers

import (
	"log/slog"
	"net/http"
	"taskpulse/internal/core/domain"
	"taskpulse/internal/core/services"
	"taskpulse/pkg/logging"
)

type TaskHandler struct {
	log   *slog.Logger
	tasks *services.TaskService
}

func NewTaskHandler(log *slog.Logger, tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{log: log, tasks: tasks}
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	tasks, err := h.tasks.List(r.Context(), userID)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "task handler - list", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	task, err := h.tasks.Create(r.Context(), userID, in)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "task handler - create", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, domain.ErrInvalidTaskID)
	if !ok {
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	task, err := h.tasks.Update(r.Context(), userID, taskID, in)
	if err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "task handler - update", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathID(w, r, domain.ErrInvalidTaskID)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), userID, taskID); err != nil {
		writeError(r.Context(), w, logging.FromContext(r.Context(), h.log), "task handler - delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
