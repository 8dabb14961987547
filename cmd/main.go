// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/culturekids/enrolment-service/internal/config"
	"github.com/culturekids/enrolment-service/internal/database"
	"github.com/culturekids/enrolment-service/internal/handler"
	"github.com/culturekids/enrolment-service/internal/notify"
	"github.com/culturekids/enrolment-service/internal/reference"
	"github.com/culturekids/enrolment-service/internal/repository"
	"github.com/culturekids/enrolment-service/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres", "database", cfg.DBName)

	// Wire up layers.
	projectRepo := repository.NewProjectRepository(pool)
	childRepo := repository.NewChildRepository(pool)
	venueRepo := repository.NewVenueRepository(pool)
	eventRepo := repository.NewEventRepository(pool, cfg.DefaultLanguage)
	enrolmentRepo := repository.NewEnrolmentRepository(pool)
	passwordRepo := repository.NewPasswordRepository(pool)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL)
	}

	codec := reference.NewCodec([]byte(cfg.ReferenceSecret))
	svc := service.New(projectRepo, childRepo, venueRepo, eventRepo,
		enrolmentRepo, passwordRepo, codec, notifier, cfg.DefaultLanguage)

	h := handler.New(svc)
	tokenParser := auth.NewTokenParser([]byte(cfg.JWTSecret))

	// Build the router.
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger)
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)

	// Public ticket verification.
	r.Get("/tickets/{referenceId}", h.VerifyTicket)

	// Authenticated API.
	r.Group(func(r chi.Router) {
		r.Use(handler.Authenticate(tokenParser))

		r.Post("/projects", h.CreateProject)
		r.Get("/projects", h.ListProjects)
		r.Post("/venues", h.CreateVenue)

		r.Route("/children", func(r chi.Router) {
			r.Post("/", h.CreateChild)
			r.Post("/{id}/guardians", h.AddGuardian)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Get("/{id}/occurrences", h.ListOccurrences)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/publish", h.PublishEvent)
			r.Post("/{id}/occurrences", h.CreateOccurrence)
			r.Post("/{id}/passwords", h.ImportPasswords)
			r.Post("/{id}/assign-password", h.AssignPassword)
		})

		r.Route("/event-groups", func(r chi.Router) {
			r.Post("/", h.CreateEventGroup)
			r.Post("/{id}/publish", h.PublishEventGroup)
		})

		r.Route("/occurrences", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateOccurrence)
			r.Delete("/{id}", h.DeleteOccurrence)
			r.Get("/{id}/capacity", h.GetOccurrenceCapacity)
			r.Post("/{id}/enrol", h.Enrol)
			r.Post("/{id}/unenrol", h.Unenrol)
		})

		r.Post("/passwords/{id}/assign", h.ReassignPassword)

		r.Put("/enrolments/{id}/attendance", h.SetAttendance)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
