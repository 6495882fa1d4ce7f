package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehr/reconciler/internal/platform/db"
	"github.com/ehr/reconciler/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, schema, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(w, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, schema, closeFn, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(cmd.Context(), schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", "", "Target schema (default DB_SCHEMA)")
		c.Flags().String("dir", "", "Migrations directory (default: migrations built into the binary)")
		cmd.AddCommand(c)
	}
	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, string, func(), error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := loadConfig()
	if err != nil {
		return nil, "", nil, err
	}
	if !cfg.PersistenceEnabled() {
		return nil, "", nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	if schema == "" {
		schema = cfg.DBSchema
	}
	if schema == "" {
		schema = db.DefaultSchema
	}

	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, schema, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, "", nil, err
	}
	return db.NewMigrator(pool, fsys), schema, pool.Close, nil
}
