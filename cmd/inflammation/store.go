package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inflammation/inflammation/internal/domain/patient"
	"github.com/inflammation/inflammation/internal/platform/db"
	"github.com/inflammation/inflammation/internal/platform/serializer"
)

func (a *app) connect(ctx context.Context) (*db.Migrator, func(), error) {
	if !a.cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, a.cfg.MigrationsDir), pool.Close, nil
}

func (a *app) importCmd() *cobra.Command {
	var records string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a patient records file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, err := serializer.LoadFrom(records)
			if err != nil {
				return err
			}
			if !a.cfg.HasDatabase() {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := patient.NewService(patient.NewPatientRepo(pool)).ImportPatients(ctx, patients)
			if err != nil {
				return err
			}
			a.logger.Info().Str("file", records).Int("imported", res.Imported).Int("skipped", res.Skipped).Msg("import finished")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d patient(s), skipped %d existing.\n", res.Imported, res.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&records, "records", "", "Patient records file (format from extension)")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	var schema, dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres patient store schema",
	}
	cmd.PersistentFlags().StringVar(&schema, "schema", db.DefaultSchema, "Target schema for migrations")
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")

	withMigrator := func(cmd *cobra.Command, fn func(context.Context, *db.Migrator) error) error {
		if dir != "" {
			a.cfg.MigrationsDir = dir
		}
		if err := db.ValidateSchema(schema); err != nil {
			return err
		}
		ctx := cmd.Context()
		m, closeFn, err := a.connect(ctx)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(ctx, m)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				a.logger.Info().Str("schema", schema).Int("applied", count).Msg("migrations applied")
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) to schema %s.\n", count, schema)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd, schema, statuses)
				return nil
			})
		},
	})
	return cmd
}

func printStatus(cmd *cobra.Command, schema string, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
	}
	tw.Flush()
}
