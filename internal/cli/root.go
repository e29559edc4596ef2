package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"quiz-leaderboard-service/internal/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	port       string
	configPath string
	logLevel   string
}

// Execute runs the CLI; ctx is cancelled on SIGINT/SIGTERM by the caller.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leaderboard-service",
		Short: "Test history and leaderboard service with a live websocket feed",
		Long: `leaderboard-service records completed test attempts and ranks users by a
weighted score: 50% average score, 30% tests completed, 20% questions attempted.

Attempts live in Postgres (postgres.url) or in memory when no database is set.
The profile directory is cached in Redis (redis.addr) or in process.

HTTP endpoints:
  GET  /api/leaderboard                 ranked entries
  GET  /api/leaderboard/rank/{userID}   1-based rank of one user
  *    /api/users/{userID}/...          profile and test history
  GET  /ws/leaderboard?userId=          live leaderboard and rank stream
  GET  /metrics, /healthz

Flags default to the PORT, CONFIG_PATH and LOG_LEVEL environment variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.port, "port", envOr("PORT", "8080"), "port to listen on")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envOr("CONFIG_PATH", "config/config.yaml"), "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn or error; overrides log.level from the config")
	cmd.AddCommand(newStartCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// loadConfig reads the YAML config and applies flag overrides.
func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
