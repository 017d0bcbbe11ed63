package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/zerocool-source/apiV2/internal/adapters/legacy"
	"github.com/zerocool-source/apiV2/internal/audit"
	authmodule "github.com/zerocool-source/apiV2/internal/auth"
	"github.com/zerocool-source/apiV2/internal/property"
	"github.com/zerocool-source/apiV2/internal/shared/auth"
	"github.com/zerocool-source/apiV2/internal/shared/config"
	"github.com/zerocool-source/apiV2/internal/shared/database"
	"github.com/zerocool-source/apiV2/internal/shared/events"
	"github.com/zerocool-source/apiV2/internal/shared/metrics"
	secmiddleware "github.com/zerocool-source/apiV2/internal/shared/middleware"
	"github.com/zerocool-source/apiV2/internal/technician"
	workorderapi "github.com/zerocool-source/apiV2/internal/workorder/api"
	workorderinfra "github.com/zerocool-source/apiV2/internal/workorder/infrastructure"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
}

func main() {
	ctx := context.Background()

	// Local development overrides; ignore when absent
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	// Event bus is optional: without it the platform runs, it just does
	// not record an audit trail
	if cfg.EventStore.Enabled {
		bus, err := events.NewBus(ctx, cfg.EventStore)
		if err != nil {
			fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
			fmt.Println("Running without the audit stream...")
		} else {
			app.Bus = bus
			defer bus.Close()
			fmt.Println("EventStoreDB audit stream connected")
		}
	}

	limiter := secmiddleware.NewTokenBucketLimiter(
		cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst,
	)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit)
	r.Use(metrics.Middleware)
	r.Use(secmiddleware.CORS)
	r.Use(secmiddleware.Throttle(limiter))

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	// Repositories
	authRepo := authmodule.NewRepository(db.Pool)
	technicianRepo := technician.NewRepository(db.Pool)
	propertyRepo := property.NewRepository(db.Pool)
	workorderRepo := workorderinfra.NewPostgresRepository(db.Pool)

	authService := authmodule.NewService(authRepo, cfg.Auth)
	authHandler := authmodule.NewHandler(authService)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.PublicRoutes())

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))

			r.Mount("/account", authHandler.Routes())

			workorderHandler := workorderapi.NewHandler(workorderRepo, technicianRepo, app.Bus)
			r.Mount("/assignments", workorderHandler.Routes())

			technicianHandler := technician.NewHandler(technicianRepo)
			r.Mount("/technicians", technicianHandler.Routes())

			propertyHandler := property.NewHandler(propertyRepo, authRepo)
			r.Mount("/properties", propertyHandler.Routes())

			if app.Bus != nil {
				auditRepo := audit.NewRepository(db.Pool)
				auditHandler := audit.NewHandler(auditRepo)
				r.Mount("/audit", auditHandler.Routes())

				auditSubscriber := audit.NewSubscriber(auditRepo, app.Bus)
				if err := auditSubscriber.Start(ctx); err != nil {
					fmt.Printf("Warning: audit subscriber failed to start: %v\n", err)
				} else {
					fmt.Println("Audit subscriber started")
				}
			}

			if cfg.Legacy.Enabled {
				importer, err := legacy.NewImporter(cfg.Legacy, db.Pool)
				if err != nil {
					fmt.Printf("Warning: legacy import unavailable: %v\n", err)
				} else {
					legacyHandler := legacy.NewHandler(importer)
					r.Mount("/legacy", legacyHandler.Routes())
					fmt.Println("Legacy import enabled")
				}
			}
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("FieldOps Service Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment: %s\n", cfg.Server.Env)
	fmt.Printf("Server:      http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:         http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:      http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "FieldOps Service Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(r.Context()); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
