package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/fanpulse/fanpulse-api/internal/config"
	"github.com/fanpulse/fanpulse-api/internal/domain/leaderboard"
	"github.com/fanpulse/fanpulse-api/internal/domain/ledger"
	"github.com/fanpulse/fanpulse-api/internal/domain/purchase"
	"github.com/fanpulse/fanpulse-api/internal/domain/realtime"
	"github.com/fanpulse/fanpulse-api/internal/domain/user"
	"github.com/fanpulse/fanpulse-api/internal/middleware"
	"github.com/fanpulse/fanpulse-api/internal/pkg/checkout"
	"github.com/fanpulse/fanpulse-api/internal/pkg/database"
	"github.com/fanpulse/fanpulse-api/internal/pkg/jwt"
	"github.com/fanpulse/fanpulse-api/internal/pkg/logger"
	"github.com/fanpulse/fanpulse-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting FanPulse economy API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	verifier := checkout.NewClient(checkout.Config{
		BaseURL: cfg.CheckoutBaseURL,
		APIKey:  cfg.CheckoutAPIKey,
		Timeout: time.Duration(cfg.CheckoutTimeoutSeconds) * time.Second,
	})

	// ---------- Fan-out hub ----------
	hub := realtime.NewHub(redisClient)
	go hub.Run()
	defer hub.Shutdown()

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	purchaseRepo := purchase.NewRepository(db, ledgerRepo)
	boardRepo := leaderboard.NewRepository(db)

	// ---------- Services ----------
	boardService := leaderboard.NewService(boardRepo, hub)
	ledgerService := ledger.NewService(ledgerRepo, userRepo, hub)
	purchaseService := purchase.NewService(purchaseRepo, ledgerRepo, verifier, boardService, hub, cfg.FanShareRatio)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService, userRepo)
	purchaseHandler := purchase.NewHandler(purchaseService)
	boardHandler := leaderboard.NewHandler(boardService)
	wsHandler := realtime.NewHandler(hub, cfg.AllowedOrigins)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	// WebSocket endpoint (before Compress)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		authMiddleware(http.HandlerFunc(wsHandler.WebSocket)).ServeHTTP(w, r)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))

		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			response.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/xp", ledgerHandler.Routes(authMiddleware))
		r.Mount("/purchases", purchaseHandler.Routes(authMiddleware))
		r.Mount("/creators", boardHandler.Routes(authMiddleware))

		r.Route("/admin", func(r chi.Router) {
			r.Mount("/awards", purchaseHandler.AdminRoutes(authMiddleware, adminMiddleware))
			r.Mount("/xp", ledgerHandler.AdminRoutes(authMiddleware, adminMiddleware))
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
