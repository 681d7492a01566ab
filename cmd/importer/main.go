// Command importer seeds the nonprofit database from a directory of CSV
// exports. Re-running it against the same files changes nothing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/seedimport/internal/config"
	_ "github.com/JonMunkholm/seedimport/internal/core/tables" // Register all entities
	"github.com/JonMunkholm/seedimport/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailures = 1
	exitFatal    = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app holds what every subcommand shares once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	// Overload lets a local .env win over stale shell exports
	envLoaded := godotenv.Overload() == nil

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := newRootCmd(a, envLoaded)

	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "error:", ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return exitFatal
}

func newRootCmd(a *app, envLoaded bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "importer",
		Short:         "Idempotent CSV seed importer for the nonprofit database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

			if envLoaded {
				a.logger.Debug("loaded .env file")
			}
			a.logger.Debug("configuration loaded", "config", cfg.String())
			return nil
		},
	}

	root.AddCommand(newRunCmd(a), newMigrateCmd(a), newEntitiesCmd(), newResetCmd(a))
	return root
}

// connect opens the pgx pool from configuration.
func (a *app) connect(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(a.cfg.Database.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(a.cfg.Database.MaxConns)
	if a.cfg.Database.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = a.cfg.Database.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	a.logger.Info("database pool ready",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", poolConfig.MaxConns,
	)
	return pool, nil
}
