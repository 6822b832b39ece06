// Package main runs the photo sync server: the REST API, the websocket
// progress feed and the background worker pool.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/photosync/cmd/server/handlers"
	"github.com/kimhsiao/photosync/internal/apperr"
	"github.com/kimhsiao/photosync/internal/auth"
	"github.com/kimhsiao/photosync/internal/config"
	"github.com/kimhsiao/photosync/internal/db"
	"github.com/kimhsiao/photosync/internal/immich"
	"github.com/kimhsiao/photosync/internal/jobs"
	"github.com/kimhsiao/photosync/internal/logging"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/progress"
	"github.com/kimhsiao/photosync/internal/ratelimit"
	"github.com/kimhsiao/photosync/internal/resize"
	"github.com/kimhsiao/photosync/internal/syncer"
)

// shutdownTimeout bounds how long in-flight HTTP requests may linger.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Get().WithError(err).Fatal("configuration invalid")
	}
	logging.Init(os.Stdout, cfg.LogLevel, cfg.LogJSON)
	log := logging.WithComponent("server")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.WithError(err).Fatal("could not create data directory")
	}

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	repo := db.NewRepository(database.DB)

	if err := seedProfiles(repo, cfg.ResizeProfiles); err != nil {
		log.WithError(err).Fatal("could not seed resize profiles")
	}

	client := immich.NewClient(cfg.ImmichURL, cfg.ImmichAPIKey)
	if ok, message := client.ValidateConnection(context.Background()); !ok {
		// The server still starts; downloads will fail until it recovers.
		log.WithField("detail", message).Warn("photo server unreachable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := progress.NewHub()
	queue := jobs.NewQueue(cfg.QueueCapacity)
	pool := jobs.NewPool(queue, repo, hub, cfg.WorkerCount)
	pool.Start(ctx)

	engine := resize.NewEngine()
	service := jobs.NewService(repo, queue, client, engine, hub, cfg.DataDir)
	reconciler := syncer.NewReconciler(repo, client)
	authSvc := auth.NewService(repo, cfg.JWTSecret)

	limiter := ratelimit.New(cfg.RateLimit)
	limiter.Start(ctx)

	router := newRouter(routerDeps{
		auth:    handlers.NewAuthHandler(authSvc),
		albums:  handlers.NewAlbumHandler(client, repo, reconciler),
		tasks:   handlers.NewTaskHandler(repo, service),
		profile: handlers.NewProfileHandler(repo),
		health:  handlers.NewHealthHandler(client),
		authSvc: authSvc,
		limiter: limiter,
		hub:     hub,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}

	// Workers stop dequeuing once ctx fired; wait for in-flight items.
	pool.Wait()
	hub.Close()
	log.Info("server stopped")
}

// seedProfiles inserts configured resize profiles that do not exist yet.
// Existing profiles are left alone so API edits survive restarts.
func seedProfiles(repo *db.Repository, specs []config.ProfileSpec) error {
	for _, spec := range specs {
		_, err := repo.GetResizeProfileByName(spec.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		profile := &models.ResizeProfile{
			Name:              spec.Name,
			Width:             spec.Width,
			Height:            spec.Height,
			IncludeHorizontal: spec.IncludeHorizontal,
			IncludeVertical:   spec.IncludeVertical,
		}
		if err := repo.CreateResizeProfile(profile); err != nil {
			return err
		}
	}
	return nil
}
