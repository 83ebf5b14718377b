package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/archivemint-backend/pkg/config"
	"github.com/angelmondragon/archivemint-backend/pkg/db"
	"github.com/angelmondragon/archivemint-backend/pkg/migrate"
)

// schemaRunner applies migrations; migrate.Run and migrate.MigrateToVersion in production.
type schemaRunner struct {
	run func(ctx context.Context, sqlDB *sql.DB, command string, args ...string) error
	to  func(ctx context.Context, sqlDB *sql.DB, version string) error
}

var gooseRunner = schemaRunner{run: migrate.Run, to: migrate.MigrateToVersion}

func openDatabase(ctx context.Context) (*sql.DB, func() error, error) {
	cfg, err := config.LoadDB()
	if err != nil {
		return nil, nil, err
	}
	client, err := db.New(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := client.SQL()
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return sqlDB, client.Close, nil
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withDB := func(fn func(ctx context.Context, sqlDB *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			sqlDB, closeDB, err := a.openDB(cmd.Context())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer closeDB()
			return fn(cmd.Context(), sqlDB)
		}
	}
	goose := func(command string) *cobra.Command {
		return &cobra.Command{
			Use:   command,
			Short: "Run goose " + command + " with the embedded migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(ctx context.Context, sqlDB *sql.DB) error {
				return a.schema.run(ctx, sqlDB, command)
			}),
		}
	}

	to := &cobra.Command{
		Use:   "to <version>",
		Short: "Migrate up or down to a YYYYMMDDHHMMSS version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := migrate.ParseVersion(args[0]); err != nil {
				return err
			}
			return withDB(func(ctx context.Context, sqlDB *sql.DB) error {
				return a.schema.to(ctx, sqlDB, args[0])
			})(cmd, args)
		},
	}

	cmd.AddCommand(goose("up"), goose("down"), goose("status"), to, newCreateMigrationCmd(a), newValidateMigrationsCmd(a))
	return cmd
}

func newCreateMigrationCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Write a new timestamped SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := migrate.CreateSQLMigration(dir, args[0], a.now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, path)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", migrate.SourceDir, "Directory to write the migration into")
	return cmd
}

func newValidateMigrationsCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check migration names, ordering and goose annotations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if dir == "" {
				err = migrate.Validate()
			} else {
				err = migrate.ValidateFS(os.DirFS(dir))
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, "migrations ok")
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Validate a directory on disk instead of the embedded set")
	return cmd
}
