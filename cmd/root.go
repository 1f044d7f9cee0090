package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/lock"
	"github.com/abhisek/adaptest/internal/logging"
	"github.com/abhisek/adaptest/internal/metrics"
	"github.com/abhisek/adaptest/internal/session"
	"github.com/abhisek/adaptest/internal/store"
)

// env is the per-invocation state built before any command runs.
var env struct {
	cfg *config.Config
	log *zap.Logger
}

var rootCmd = &cobra.Command{
	Use:          "adaptest",
	Short:        "Computerized adaptive testing engine",
	Long:         "adaptest runs IRT-based adaptive tests: it manages item pools, administers sessions, reports results and recalibrates items.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Log.Level = lvl
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		env.cfg = cfg
		env.log = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env.log != nil {
			_ = env.log.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ADAPTEST_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(takeCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(calibrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path (database.path, ADAPTEST_DB), then the default
// XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if env.cfg != nil && env.cfg.Database.Path != "" {
		return env.cfg.Database.Path, store.EnsureDir(env.cfg.Database.Path)
	}
	return store.DefaultDBPath()
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath, store.WithInvalidator(func(kind store.Kind, id string) {
		env.log.Debug("invalidated", zap.String("kind", string(kind)), zap.String("id", id))
	}))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}

// newEngine wires a session engine over st. The returned cleanup releases
// the Redis client when one is configured.
func newEngine(ctx context.Context, st *store.Store, m *metrics.Metrics) (*session.Engine, func(), error) {
	defaults, err := env.cfg.SessionDefaults()
	if err != nil {
		return nil, nil, err
	}

	var (
		locker  lock.Locker = lock.NewLocal()
		cleanup             = func() {}
	)
	if addr := env.cfg.Lock.RedisAddr; addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		locker = lock.NewRedis(client, lock.WithLogger(env.log))
		cleanup = func() { client.Close() }
	}

	engine := session.NewEngine(st,
		session.WithDefaults(defaults),
		session.WithLocker(locker),
		session.WithLogger(env.log),
		session.WithMetrics(m),
	)
	return engine, cleanup, nil
}
