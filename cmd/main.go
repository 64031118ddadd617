package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/pong-tournaments/config"
	"github.com/Dosada05/pong-tournaments/db"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/presence"
	"github.com/Dosada05/pong-tournaments/realtime"
	"github.com/Dosada05/pong-tournaments/repositories"
	api "github.com/Dosada05/pong-tournaments/routes"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/Dosada05/pong-tournaments/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Pong Tournaments API
// @version 1.0
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server exited properly")
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if strings.EqualFold(format, "text") {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: lvl, AddSource: true}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.RunMigrations(dbConn.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database connection established", slog.Int("port", cfg.ServerPort))

	lobbyRepo := repositories.NewLobbyRepository(dbConn)
	participantRepo := repositories.NewParticipantRepository(dbConn)
	matchRepo := repositories.NewMatchRepository(dbConn)
	roomRepo := repositories.NewRoomRepository(dbConn)

	registry := realtime.NewRegistry()

	var source presence.Source = presence.NewLocal(registry)
	if cfg.RedisURL != "" {
		rdb, err := presence.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		source = presence.Combine(source, presence.NewRedis(rdb, presence.DefaultHeartbeatWindow))
		logger.Info("redis presence enabled")
	}

	var archiver services.BracketArchiver
	if cfg.R2Enabled() {
		uploader, err := storage.NewR2Uploader(ctx, storage.R2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize R2 uploader: %w", err)
		}
		archiver = storage.NewBracketArchive(uploader)
		logger.Info("bracket archiving enabled", slog.String("bucket", cfg.R2BucketName))
	}

	lobbyService := services.NewLobbyService(dbConn, lobbyRepo, participantRepo, matchRepo, roomRepo, registry, logger)
	matchService := services.NewMatchService(dbConn, lobbyRepo, participantRepo, matchRepo, roomRepo,
		services.NewMatchResolver(), registry, archiver, logger)
	abortService := services.NewAbortService(dbConn, lobbyRepo, participantRepo, registry, archiver, logger)

	sessions := realtime.NewRoomSessions(registry, services.NewRoomStore(dbConn, lobbyRepo, matchRepo, roomRepo),
		abortService, cfg.HostDisconnectGrace, logger)

	auth := middleware.NewJWTAuth(cfg.JWTSecretKey)
	tournamentHandler := handlers.NewTournamentHandler(lobbyService, matchService, abortService)
	webSocketHandler := handlers.NewWebSocketHandler(ctx, sessions, cfg.CORSAllowedOrigins, logger)
	healthHandler := handlers.NewHealthHandler(dbConn)

	router := chi.NewRouter()
	api.SetupRoutes(router, auth, cfg.CORSAllowedOrigins, tournamentHandler, webSocketHandler, healthHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	sweeper := services.NewHostMigrationSweeper(dbConn, lobbyRepo, participantRepo, source, registry,
		services.HostMigrationConfig{
			Interval:     cfg.HostMigrationInterval,
			OfflineGrace: cfg.HostOfflineGrace,
			Debounce:     cfg.HostHandoverDebounce,
		}, logger)
	reaper := services.NewInactivityReaper(dbConn, lobbyRepo, matchRepo, abortService,
		cfg.ReaperInterval, cfg.InactivityThreshold, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
