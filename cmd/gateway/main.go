package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/brightclass/brightclass-lms/internal/api/http"
	"github.com/brightclass/brightclass-lms/internal/assignment"
	auth "github.com/brightclass/brightclass-lms/internal/auth/middleware"
	"github.com/brightclass/brightclass-lms/internal/config"
	"github.com/brightclass/brightclass-lms/internal/db"
	"github.com/brightclass/brightclass-lms/internal/grading"
	"github.com/brightclass/brightclass-lms/internal/rbac"
	"github.com/brightclass/brightclass-lms/internal/results"
	syncx "github.com/brightclass/brightclass-lms/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	events := syncx.NewRecorder(dbh, cfg.SiteID, time.Now)
	store := assignment.NewSQLStore(dbh, grading.NewExactMatchGrader(), results.NewAggregator(), events, time.Now)

	// --- Auth (local JWT; classroom servers run fully offline) ---
	authSvc := auth.NewAuthService(cfg.AuthSecret, dbh, cfg.AdminUser, cfg.AdminPassHash)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Authoring (teacher/admin)
		pr.With(rbac.Require("assignment:create")).
			Put("/assignments/{assignmentID}", api.PutAssignmentHandler(store))
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(store))

		// Student attempt flow
		pr.With(rbac.RequireAny("attempt:create", "attempt:view")).
			Get("/assignments/{assignmentID}/eligibility", api.EligibilityHandler(store))
		pr.With(rbac.Require("attempt:create")).
			Post("/assignments/{assignmentID}/attempts", api.StartAttemptHandler(store))
		pr.With(rbac.Require("attempt:progress")).
			Put("/attempts/{attemptID}/progress", api.SaveProgressHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitHandler(store))
		pr.With(rbac.Require("attempt:abandon")).
			Post("/attempts/{attemptID}/abandon", api.AbandonAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view")).
			Get("/attempts", api.ListAttemptsHandler(store))

		// Review and results
		pr.With(rbac.RequireAny("submission:view-own", "submission:view")).
			Get("/attempts/{attemptID}/review", api.ReviewHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view")).
			Get("/assignments/{assignmentID}/history", api.HistoryHandler(store))
		pr.With(rbac.RequireAny("result:view-own", "result:view")).
			Get("/assignments/{assignmentID}/result", api.ResultHandler(store))

		// Users
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:view")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.Post("/users/change-password", api.ChangePasswordHandler(dbh))
		pr.With(rbac.Require("users:update")).
			Put("/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))

		// Sync feed (admin)
		pr.With(rbac.Require("sync:read")).
			Get("/sync/events", api.EventsSinceHandler(events))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
