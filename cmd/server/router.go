package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kimhsiao/photosync/cmd/server/handlers"
	"github.com/kimhsiao/photosync/internal/auth"
	"github.com/kimhsiao/photosync/internal/progress"
	"github.com/kimhsiao/photosync/internal/ratelimit"
)

// routerDeps bundles everything the HTTP surface needs.
type routerDeps struct {
	auth    *handlers.AuthHandler
	albums  *handlers.AlbumHandler
	tasks   *handlers.TaskHandler
	profile *handlers.ProfileHandler
	health  *handlers.HealthHandler

	authSvc *auth.Service
	limiter *ratelimit.Limiter
	hub     *progress.Hub
}

// newRouter builds the full route table. Auth endpoints and the health
// check stay open; everything else under /api requires a bearer token.
func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(deps.limiter.Middleware)

	r.Get("/api/health", deps.health.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", deps.hub.ServeWS)

	r.Route("/api/auth", func(r chi.Router) {
		r.Get("/setup", deps.auth.SetupStatus)
		r.Post("/register", deps.auth.Register)
		r.Post("/login", deps.auth.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.authSvc.Middleware)

		r.Get("/api/albums", deps.albums.ListAlbums)
		r.Post("/api/albums/sync", deps.albums.SyncAll)
		r.Post("/api/albums/{id}/sync", deps.albums.SyncOne)

		r.Get("/api/tasks", deps.tasks.ListTasks)
		r.Post("/api/tasks/download", deps.tasks.StartDownload)
		r.Post("/api/tasks/resize", deps.tasks.StartResize)
		r.Get("/api/tasks/{id}", deps.tasks.GetTask)

		r.Get("/api/profiles", deps.profile.ListProfiles)
		r.Post("/api/profiles", deps.profile.CreateProfile)
		r.Get("/api/profiles/{id}", deps.profile.GetProfile)
		r.Put("/api/profiles/{id}", deps.profile.UpdateProfile)
		r.Delete("/api/profiles/{id}", deps.profile.DeleteProfile)
	})

	return r
}
