// Package main is the entry point for the CivicWatch hazard server.
// It provides a REST API for citizen hazard reports and the authority
// workflow around them: verification, repair tracking, voting, a
// points/badge ledger, and proximity-targeted notifications.
//
// Architecture:
//   - Report state, votes, ledger, and notifications live in one
//     in-memory core; every mutation to a report and its side effects
//     is applied atomically under the store lock
//   - The identity directory merges builtin seed accounts over
//     optionally-persisted ones, builtins winning on collision
//   - Sessions are JWT access tokens with Redis-backed refresh tokens
//   - Report addresses are enriched via Mapbox reverse geocoding when
//     a token is configured
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/civicwatch/hazard-server/internal/config"
	"github.com/civicwatch/hazard-server/internal/database"
	"github.com/civicwatch/hazard-server/internal/geocode"
	"github.com/civicwatch/hazard-server/internal/handlers"
	"github.com/civicwatch/hazard-server/internal/middleware"
	"github.com/civicwatch/hazard-server/internal/services"
	"github.com/civicwatch/hazard-server/internal/session"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting CivicWatch Hazard Server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"notify_radius_km", cfg.NotifyRadiusKm,
	)

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	// Optional Postgres-backed directory persistence
	var (
		pool    *pgxpool.Pool
		persist services.AccountPersistence
	)
	if cfg.DatabaseURL != "" {
		pool, err = database.NewPool(cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		persist, err = database.NewAccountStore(ctx, pool, sugar)
		if err != nil {
			sugar.Fatalf("Failed to initialize account store: %v", err)
		}
	}

	// Refresh session store: Redis when configured, memory otherwise
	var sessionStore session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisStore.Close()
		sessionStore = redisStore
	} else {
		sugar.Warn("REDIS_URL not set, refresh sessions held in memory")
		sessionStore = session.NewMemoryStore()
	}

	// Initialize services
	dir, err := services.NewDirectoryService(ctx, persist, sugar)
	if err != nil {
		sugar.Fatalf("Failed to initialize directory: %v", err)
	}
	ledger := services.NewLedgerService(dir, sugar)
	notif := services.NewNotificationService(dir, clock, cfg.NotifyRadiusKm, sugar)
	reports := services.NewReportService(dir, ledger, notif, clock, sugar)
	votes := services.NewVoteService(reports, dir, sugar)
	sessions := session.NewManager(cfg.JWTSecret, sessionStore, cfg.AccessTTL, cfg.RefreshTTL, clock)
	geocoder := geocode.NewClient(cfg.MapboxToken, cfg.GeocodeTimeout, sugar)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(dir, ledger, sessions, sugar)
	reportHandler := handlers.NewReportHandler(reports, votes, geocoderOrNil(geocoder), sugar)
	notifHandler := handlers.NewNotificationHandler(notif, sugar)
	healthHandler := handlers.NewHealthHandler(pool, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Rate limiting
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		// Authentication (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// Everything else requires a session
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions))

			r.Get("/me", authHandler.Me)
			r.Get("/citizens/{id}/balance", authHandler.Balance)

			r.Route("/reports", func(r chi.Router) {
				r.Post("/", reportHandler.Submit)
				r.Get("/", reportHandler.List)
				r.Get("/{id}", reportHandler.Get)
				r.Post("/{id}/action", reportHandler.Action) // verification / fixing
				r.Post("/{id}/vote", reportHandler.Vote)
				r.Delete("/{id}", reportHandler.Delete)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifHandler.List)
				r.Post("/{id}/read", notifHandler.MarkRead)
				r.Post("/{id}/compliment", notifHandler.Compliment)
				r.Delete("/{id}", notifHandler.Delete)
			})
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}

// geocoderOrNil avoids handing a typed-nil *geocode.Client to the
// handler's Reverser interface field.
func geocoderOrNil(c *geocode.Client) geocode.Reverser {
	if c == nil {
		return nil
	}
	return c
}
