package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/immich"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/syncer"
)

// AlbumRemote is the slice of the photo server API the album handlers need.
type AlbumRemote interface {
	ListAlbums(ctx context.Context) ([]immich.Album, error)
}

// albumStore is satisfied by *db.Repository.
type albumStore interface {
	GetAlbum(id string) (*models.Album, error)
}

// AlbumHandler handles album listing and reconciliation.
type AlbumHandler struct {
	remote     AlbumRemote
	local      albumStore
	reconciler *syncer.Reconciler
}

// NewAlbumHandler creates a new AlbumHandler.
func NewAlbumHandler(remote AlbumRemote, local albumStore, reconciler *syncer.Reconciler) *AlbumHandler {
	return &AlbumHandler{remote: remote, local: local, reconciler: reconciler}
}

// albumView merges remote metadata with local sync state.
type albumView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AssetCount int    `json:"asset_count"`
	Synced     bool   `json:"synced"`
	LastSynced int64  `json:"last_synced,omitempty"`
}

// ListAlbums handles GET /api/albums
func (h *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.remote.ListAlbums(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]albumView, 0, len(albums))
	for _, album := range albums {
		view := albumView{ID: album.ID, Name: album.AlbumName, AssetCount: album.AssetCount}
		local, err := h.local.GetAlbum(album.ID)
		switch {
		case err == nil:
			view.Synced = local.LastSynced > 0
			view.LastSynced = local.LastSynced
		case !errors.Is(err, apperr.ErrNotFound):
			writeError(w, err)
			return
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}

// SyncAll handles POST /api/albums/sync
func (h *AlbumHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.reconciler.SyncAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// SyncOne handles POST /api/albums/{id}/sync
func (h *AlbumHandler) SyncOne(w http.ResponseWriter, r *http.Request) {
	albumID := chi.URLParam(r, "id")
	if albumID == "" {
		writeError(w, apperr.Invalid("album id is required"))
		return
	}

	albums, err := h.remote.ListAlbums(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, album := range albums {
		if album.ID == albumID {
			result := h.reconciler.ReconcileAlbum(r.Context(), album)
			writeJSON(w, http.StatusOK, result)
			return
		}
	}
	writeError(w, apperr.Wrap(apperr.ErrNotFound, "album %s", albumID))
}
