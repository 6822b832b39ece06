package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/jobs"
	"github.com/kimhsiao/photosync/internal/models"
)

// defaultTaskListLimit bounds GET /api/tasks when no limit is given.
const defaultTaskListLimit = 50

// TaskHandler handles task inspection and creation.
type TaskHandler struct {
	repo *db.Repository
	svc  *jobs.Service
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(repo *db.Repository, svc *jobs.Service) *TaskHandler {
	return &TaskHandler{repo: repo, svc: svc}
}

// taskResponse wraps a task with whether this request created it.
type taskResponse struct {
	Task    *models.Task `json:"task"`
	Created bool         `json:"created"`
}

// ListTasks handles GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultTaskListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, apperr.Invalid("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	tasks, err := h.repo.ListTasks(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /api/tasks/{id}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.repo.GetTask(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// StartDownload handles POST /api/tasks/download
func (h *TaskHandler) StartDownload(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AlbumID   string `json:"album_id"`
		AlbumName string `json:"album_name"`
	}
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	task, created, err := h.svc.StartDownload(r.Context(), request.AlbumID, request.AlbumName)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	writeJSON(w, status, taskResponse{Task: task, Created: created})
}

// StartResize handles POST /api/tasks/resize
func (h *TaskHandler) StartResize(w http.ResponseWriter, r *http.Request) {
	var request struct {
		AlbumID   string `json:"album_id"`
		ProfileID int64  `json:"profile_id"`
	}
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}

	task, created, err := h.svc.StartResize(r.Context(), request.AlbumID, request.ProfileID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusAccepted
	}
	writeJSON(w, status, taskResponse{Task: task, Created: created})
}
