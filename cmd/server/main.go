package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/AnshRaj112/tandem-backend/internal/config"
	"github.com/AnshRaj112/tandem-backend/internal/database"
	"github.com/AnshRaj112/tandem-backend/internal/handlers"
	"github.com/AnshRaj112/tandem-backend/internal/logger"
	"github.com/AnshRaj112/tandem-backend/internal/middleware"
	"github.com/AnshRaj112/tandem-backend/internal/pairing"
	"github.com/AnshRaj112/tandem-backend/internal/routes"
	"github.com/AnshRaj112/tandem-backend/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load env
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("tandem-backend", cfg.LogLevel, cfg.IsProduction())
	zlog.Logger = log
	if envErr != nil {
		log.Info().Msg("No .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	log.Info().Msg("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(ctx, cfg.PostgresURI); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.DisconnectPostgres()
	if err := database.InitPostgresTables(ctx, database.PostgresDB); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL tables")
	}

	// Connect to Redis
	log.Info().Msg("Connecting to Redis...")
	if err := database.ConnectRedis(ctx, cfg.RedisURI); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB
	log.Info().Msg("Connecting to MongoDB...")
	if err := database.Connect(ctx, cfg.MongoURI); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer database.Disconnect()

	directory := services.NewCachedDirectory(
		services.NewPostgresDirectory(database.PostgresDB, cfg.CandidateLimit),
		database.RedisClient, cfg.DirectoryCacheTTL, log,
	)
	oversight := services.NewOversightLog(database.DB, services.NewRecentConnections(database.RedisClient, log), log)
	if err := oversight.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ failed to ensure MongoDB oversight indexes")
	} else {
		log.Info().Msg("✅ MongoDB oversight indexes ensured")
	}
	checkpoints := services.NewRedisCheckpoint(database.RedisClient)
	sessions := services.NewSessionStore(database.RedisClient, cfg.SessionTTL)
	hub := services.NewChatHub(database.RedisClient, log)
	spam := services.NewSpamGuard(cfg.SpamMessagesPerMinute, cfg.SpamBurst)

	// Initialize Cloudinary service
	var media handlers.MediaUploader
	if svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret); err != nil {
		log.Warn().Err(err).Msg("⚠️ Media uploads will not be available")
	} else {
		media = svc
		log.Info().Msg("✅ Cloudinary service initialized")
	}

	// Pairing engine
	registry := pairing.NewRegistry(pairing.NewTranscriptStore(cfg.TranscriptCap))
	coordinator := pairing.NewCoordinator(pairing.CoordinatorConfig{
		Directory:         directory,
		Registry:          registry,
		Router:            pairing.NewRouter(registry, hub, cfg.DeliveryTimeout),
		Notifier:          hub,
		Presence:          hub,
		Oversight:         oversight,
		Checkpointer:      checkpoints,
		Logger:            log,
		SideEffectTimeout: cfg.SideEffectTimeout,
	})

	h := handlers.New(handlers.Deps{
		Coordinator: coordinator,
		Profiles:    directory,
		Sessions:    sessions,
		Hub:         hub,
		Spam:        spam,
		Media:       media,
		Oversight:   oversight,
		Checkpoints: checkpoints,
		Logger:      log,
	})

	limiter := middleware.NewIPRateLimiter(middleware.APIRateLimitRPS, middleware.APIRateLimitBurst)
	go limiter.Run(ctx)
	go spam.Run(ctx)
	go hub.Run(ctx)

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.Origins()))
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.APIHost()) {
			r.Use(mw)
		}
		log.Info().Str("host", cfg.APIHost()).Msg("✅ Production security enabled (security headers, host check)")
	}
	if cfg.AdminKeyHash == "" {
		log.Warn().Msg("⚠️ ADMIN_KEY_HASH not set; admin endpoints are locked. Generate one with: go run ./cmd/adminkey")
	}
	routes.SetupRoutes(r, h, routes.Options{
		Sessions:     sessions,
		AdminKeyHash: cfg.AdminKeyHash,
		APILimiter:   limiter,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Tandem backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := coordinator.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("pending side effects dropped")
	}
	log.Info().Interface("pairing", coordinator.Stats()).Msg("✅ Shutdown complete")
}
