package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/photosync/internal/models"
)

func profileRouter(t *testing.T) *chi.Mux {
	t.Helper()
	handler := NewProfileHandler(setupTestRepo(t))

	r := chi.NewRouter()
	r.Get("/api/profiles", handler.ListProfiles)
	r.Post("/api/profiles", handler.CreateProfile)
	r.Get("/api/profiles/{id}", handler.GetProfile)
	r.Put("/api/profiles/{id}", handler.UpdateProfile)
	r.Delete("/api/profiles/{id}", handler.DeleteProfile)
	return r
}

func TestProfileCRUD(t *testing.T) {
	router := profileRouter(t)

	rec := postJSON(t, router, "/api/profiles", map[string]interface{}{
		"name": "frame", "width": 800, "height": 480, "include_horizontal": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.ResizeProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created profile must have an id")
	}

	path := fmt.Sprintf("/api/profiles/%d", created.ID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPut, path, jsonBody(t, map[string]interface{}{
		"name": "frame-v2", "width": 1024, "height": 600, "include_vertical": true,
	}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d, want 404", rec.Code)
	}
}

func TestProfileValidation(t *testing.T) {
	router := profileRouter(t)

	cases := []map[string]interface{}{
		{"width": 800, "height": 480, "include_horizontal": true},            // no name
		{"name": "x", "width": 0, "height": 480, "include_horizontal": true}, // bad width
		{"name": "x", "width": 800, "height": 480},                           // no orientation
	}
	for i, body := range cases {
		rec := postJSON(t, router, "/api/profiles", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: got %d, want 400", i, rec.Code)
		}
	}
}
