package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-leaderboard-service/internal/app"
	"quiz-leaderboard-service/internal/config"
	"quiz-leaderboard-service/internal/domain"
	"quiz-leaderboard-service/internal/infra/memory"
	pgstore "quiz-leaderboard-service/internal/infra/postgres"
	rediscache "quiz-leaderboard-service/internal/infra/redis"
	"quiz-leaderboard-service/internal/metrics"
	transport "quiz-leaderboard-service/internal/transport/http"
)

// newStartCmd builds the CLI subcommand to start the server.
func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the leaderboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}
}

func runServer(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := opts.port
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		attempts app.AttemptRepository = memory.NewAttemptStore()
		loader   memory.ProfileLoader  = memory.NewProfileStore(sampleProfiles()...)
	)
	if pool != nil {
		attempts = pgstore.NewAttemptStore(pool)
		loader = pgstore.NewProfileStore(pool)
	}

	profileTTL := config.TTLDuration(cfg.Profiles.TTL, 5*time.Minute)
	var profiles app.ProfileDirectory
	if redisClient != nil {
		profiles = rediscache.NewProfileCache(redisClient, loader, profileTTL, logger)
	} else {
		profiles = memory.NewProfileCache(loader, profileTTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	if err := m.Register(registry); err != nil {
		return err
	}

	service := app.NewLeaderboardService(attempts, profiles,
		app.WithLogger(logger),
		app.WithObserver(m),
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, logger, registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting leaderboard service",
			slog.String("addr", server.Addr),
			slog.Bool("postgres", pool != nil),
			slog.Bool("redis", redisClient != nil),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleProfiles seeds the in-memory directory when no database is configured.
func sampleProfiles() []domain.Profile {
	return []domain.Profile{
		{UserID: "demo-1", DisplayName: "Demo Student", Email: "demo@example.com"},
	}
}
