package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/models"
)

// ProfileHandler handles resize profile CRUD.
type ProfileHandler struct {
	repo *db.Repository
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(repo *db.Repository) *ProfileHandler {
	return &ProfileHandler{repo: repo}
}

type profileRequest struct {
	Name              string `json:"name"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	IncludeHorizontal bool   `json:"include_horizontal"`
	IncludeVertical   bool   `json:"include_vertical"`
}

func (pr profileRequest) validate() error {
	if pr.Name == "" {
		return apperr.Invalid("name is required")
	}
	if pr.Width < 1 || pr.Height < 1 {
		return apperr.Invalid("width and height must be positive")
	}
	if !pr.IncludeHorizontal && !pr.IncludeVertical {
		return apperr.Invalid("profile must include at least one orientation")
	}
	return nil
}

// ListProfiles handles GET /api/profiles
func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.repo.ListResizeProfiles()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// GetProfile handles GET /api/profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	profile, err := h.repo.GetResizeProfile(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// CreateProfile handles POST /api/profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var request profileRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}
	if err := request.validate(); err != nil {
		writeError(w, err)
		return
	}

	profile := &models.ResizeProfile{
		Name:              request.Name,
		Width:             request.Width,
		Height:            request.Height,
		IncludeHorizontal: request.IncludeHorizontal,
		IncludeVertical:   request.IncludeVertical,
	}
	if err := h.repo.CreateResizeProfile(profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// UpdateProfile handles PUT /api/profiles/{id}
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var request profileRequest
	if err := decodeBody(r, &request); err != nil {
		writeError(w, err)
		return
	}
	if err := request.validate(); err != nil {
		writeError(w, err)
		return
	}

	profile := &models.ResizeProfile{
		ID:                id,
		Name:              request.Name,
		Width:             request.Width,
		Height:            request.Height,
		IncludeHorizontal: request.IncludeHorizontal,
		IncludeVertical:   request.IncludeVertical,
	}
	if err := h.repo.UpdateResizeProfile(profile); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile handles DELETE /api/profiles/{id}
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := profileID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteResizeProfile(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func profileID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, apperr.Invalid("profile id must be an integer")
	}
	return id, nil
}
