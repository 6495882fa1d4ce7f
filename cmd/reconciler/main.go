package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/config"
	"github.com/ehr/reconciler/internal/domain/comparison"
	"github.com/ehr/reconciler/internal/extract"
	"github.com/ehr/reconciler/internal/platform/db"
	"github.com/ehr/reconciler/internal/reconcile"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reconciler",
		Short:         "Compare clinical records of one patient across two FHIR sources",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := reconcile.ValidatePolicyTable(); err != nil {
				return err
			}
			return extract.ValidateRegistry()
		},
	}

	root.AddCommand(compareCmd())
	root.AddCommand(batchCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(policiesCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	return root
}

// loadConfig reads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: JSON by default, console output in
// development.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(w).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

// openStore connects to the database when one is configured. Without
// DATABASE_URL both return values are nil.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, comparison.Repository, error) {
	if !cfg.PersistenceEnabled() {
		logger.Info().Msg("DATABASE_URL not set, results are not persisted")
		return nil, nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")
	return pool, comparison.NewRepoPG(pool), nil
}

func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return "", errors.New("--" + name + " is required")
	}
	return v, nil
}
