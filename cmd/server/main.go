package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epiwatch/role-portal/internal/api"
	"epiwatch/role-portal/internal/cache"
	"epiwatch/role-portal/internal/config"
	"epiwatch/role-portal/internal/logging"
	repoMongo "epiwatch/role-portal/internal/repository/mongo"
	"epiwatch/role-portal/internal/service"
	"epiwatch/role-portal/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		bootLogger := logging.New("development")
		bootLogger.Fatal().Err(err).Msg("could not load config")
	}

	logger := logging.New(cfg.Environment)
	logger.Info().Msg("starting role portal server")

	// --- Database Connection ---
	dbClient, err := repoMongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	defer func() {
		logger.Info().Msg("disconnecting MongoDB")
		if err := repoMongo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info().Msg("database connection established")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := repoMongo.EnsureUserIndexes(ctx, appDB.Collection("users")); err != nil {
			logger.Warn().Err(err).Msg("failed to create user indexes")
		}
		if err := repoMongo.EnsureRequestIndexes(ctx, appDB.Collection("upgrade_requests")); err != nil {
			logger.Warn().Err(err).Msg("failed to create upgrade request indexes")
		}
	}()

	// --- Redis (geocode cache) ---
	// The cache is an optimization; the server still serves /location
	// without it.
	redisClient, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, geocode caching disabled")
		redisClient = nil
	}

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize S3 storage")
	}

	// --- Initialize Repositories ---
	userRepo := repoMongo.NewMongoUserRepository(appDB)
	requestRepo := repoMongo.NewMongoRequestRepository(appDB)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	requestService := service.NewRequestService(requestRepo, userRepo, fileStorage, cfg.Uploads.PathPrefix, logger)
	geoService := service.NewGeoService(cfg.Geocoder, redisClient, logger)

	// --- Initialize Gin Engine ---
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default() // Includes Logger and Recovery middleware

	// --- Setup Routes ---
	api.SetupRoutes(router, cfg.JWT.Secret, authService, requestService, geoService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info().Str("address", cfg.Server.Address).Msg("server starting")

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen and serve error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	// Give in-flight requests five seconds to finish.
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exiting")
}
