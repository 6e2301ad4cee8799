package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wikicontest/wikicontest/internal/api"
	"github.com/wikicontest/wikicontest/internal/auth"
	"github.com/wikicontest/wikicontest/internal/cache"
	"github.com/wikicontest/wikicontest/internal/config"
	"github.com/wikicontest/wikicontest/internal/mattermost"
	"github.com/wikicontest/wikicontest/internal/mediawiki"
	"github.com/wikicontest/wikicontest/internal/repository"
	"github.com/wikicontest/wikicontest/internal/service/contest"
	"github.com/wikicontest/wikicontest/internal/service/leaderboard"
	"github.com/wikicontest/wikicontest/internal/service/scheduler"
	"github.com/wikicontest/wikicontest/internal/service/submission"
	"github.com/wikicontest/wikicontest/pkg/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log.Info().Str("environment", cfg.Server.Environment).Msg("Starting WikiContest API server...")

	db, err := repository.NewDB(&cfg.Database, log.Named("database"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.Migrate, log.Named("migrate")); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	store, err := cache.NewClient(&cfg.Database.Redis, log.Named("cache"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer store.Close()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	contestRepo := repository.NewContestRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	// Services
	authService, err := auth.NewService(cfg, userRepo, store, log.Named("auth"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize auth service")
	}
	if !cfg.OAuth.Enabled() {
		log.Warn().Msg("OAuth consumer credentials are not configured, Wikimedia login is disabled")
	}

	wiki := mediawiki.NewClient(&cfg.MediaWiki, log.Named("mediawiki"))
	contestService := contest.NewService(contestRepo, log.Named("contest"))
	submissionService := submission.NewService(submissionRepo, contestRepo, wiki, log.Named("submission"))
	leaderboardService := leaderboard.NewService(submissionRepo, contestRepo, log.Named("leaderboard"))

	notifier := mattermost.NewClient(&cfg.Mattermost, log.Named("mattermost"))
	schedulerService := scheduler.NewService(cfg, contestRepo, submissionRepo, notifier, submissionService, log.Named("scheduler"))
	if err := schedulerService.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	router := api.NewRouter(&api.Services{
		Auth:        authService,
		Contests:    contestService,
		Submissions: submissionService,
		Leaderboard: leaderboardService,
		Database:    db,
		Cache:       store,
	}, cfg, log.Named("http"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Prometheus.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Prometheus.Path, promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Prometheus.Port),
			Handler:           mux,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}

		go func() {
			log.Info().
				Int("port", cfg.Metrics.Prometheus.Port).
				Str("path", cfg.Metrics.Prometheus.Path).
				Msg("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	schedulerService.Stop()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Metrics server forced to shutdown")
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
