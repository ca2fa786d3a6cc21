package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/splax/installer/internal/app/migrate"
	"github.com/splax/installer/internal/database"
	"github.com/splax/installer/internal/envfile"
	"github.com/splax/installer/pkg/config"
	"github.com/splax/installer/pkg/logger"
)

type migrateOptions struct {
	command string
	target  int64
	timeout time.Duration
}

func newMigrateCmd(cfg config.InstallerConfig) *cobra.Command {
	opts := &migrateOptions{command: "up", timeout: cfg.MigrationTimeout}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or inspect the schema of the configured database",
		Long: `
Connects to the database named by DB_CONNECTION in the environment file
and runs the requested migration command (up, status or down).
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cfg, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.command, "command", opts.command, "migrate command (up|status|down)")
	flags.Int64Var(&opts.target, "target", 0, "target version for down command (optional)")
	flags.DurationVar(&opts.timeout, "timeout", opts.timeout, "command timeout")
	flags.StringVar(&cfg.EnvFilePath, "env-file", cfg.EnvFilePath, "environment file holding the DB_* settings")
	return cmd
}

func runMigrate(ctx context.Context, cfg config.InstallerConfig, opts *migrateOptions) error {
	switch opts.command {
	case "up", "status", "down":
	default:
		return fmt.Errorf("unsupported command %q", opts.command)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	values, err := envfile.New(cfg.EnvFilePath, cfg.EnvExamplePath, log).Values()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	desc := database.DefaultConnections(cfg.DatabaseSSLMode).DescriptorFromEnvironment(values)
	runner, err := migrate.Open(ctx, desc, cfg.MigrationsDir, opts.timeout, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err, "connection", desc)
		return err
	}
	defer runner.Close()

	switch opts.command {
	case "up":
		err = runner.Ensure(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, opts.target)
	}
	if err != nil {
		log.Error("migration command failed", "command", opts.command, "error", err)
		return err
	}
	log.Info("migration command completed", "command", opts.command)
	return nil
}
