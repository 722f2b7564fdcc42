package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/sandeepkv93/tenant-session-core/internal/app"
	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/database"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "authcore",
		Short:         "Tenant-aware authentication and session security service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newCleanupCommand(), newSchedulerCommand())
	return root
}

// bootstrap loads configuration and builds the process logger. The log
// provider is nil unless OTLP logs are enabled.
func bootstrap(ctx context.Context) (*config.Config, *slog.Logger, *sdklog.LoggerProvider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, lp, err := observability.NewLogger(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, lp, nil
}

func flushLogs(ctx context.Context, lp *sdklog.LoggerProvider) {
	if lp != nil {
		_ = lp.Shutdown(context.WithoutCancel(ctx))
	}
}

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, lp, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			if migrate {
				if err := migrateDatabase(cfg); err != nil {
					flushLogs(ctx, lp)
					return err
				}
			}
			runtime, err := observability.InitRuntime(ctx, cfg, logger, lp)
			if err != nil {
				flushLogs(ctx, lp)
				return fmt.Errorf("init observability: %w", err)
			}
			a, cleanup, err := app.InitializeApp(cfg, logger, runtime)
			if err != nil {
				_ = runtime.Shutdown(context.WithoutCancel(ctx))
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func migrateDatabase(cfg *config.Config) error {
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	return database.Migrate(db)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, lp, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer flushLogs(cmd.Context(), lp)
			if err := migrateDatabase(cfg); err != nil {
				return err
			}
			logger.Info("migrations applied", "driver", cfg.DatabaseDriver)
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Revoke expired sessions once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, lp, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer flushLogs(ctx, lp)
			janitor, cleanup, err := app.InitializeSessionJanitor(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			n, err := janitor.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d expired session(s)\n", n)
			return nil
		},
	}
}

func newSchedulerCommand() *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Revoke expired sessions on a cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, lp, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer flushLogs(ctx, lp)
			if schedule == "" {
				schedule = cfg.SessionCleanupCron
			}
			janitor, cleanup, err := app.InitializeSessionJanitor(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			return janitor.Schedule(ctx, schedule)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression, defaults to the configured session cleanup schedule")
	return cmd
}
