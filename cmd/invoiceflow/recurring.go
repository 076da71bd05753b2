package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/justinhw1987/invoiceflow/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Recurring invoice jobs",
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate invoices for recurring templates that are due",
	Long: `Generate one invoice for every active recurring template whose next
invoice date is today or earlier.

With --once a single pass runs and the command exits; otherwise the invoker
keeps running and repeats the pass on every interval.`,
	RunE: runRecurring,
}

func runRecurring(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")
	interval, _ := cmd.Flags().GetDuration("interval")

	if interval > 0 {
		// config.Load reads the interval from the environment.
		if err := os.Setenv("RECURRING_INTERVAL", interval.String()); err != nil {
			return err
		}
	}

	opts := []fx.Option{
		infraModules(),
		migration.Module,
		domainModules(),
		scheduler.Module,
	}

	if once {
		var (
			s   *scheduler.Scheduler
			log *zap.Logger
		)
		opts = append(opts, fx.NopLogger, fx.Populate(&s, &log))
		app := fx.New(opts...)
		return runOnce(cmd.Context(), app, func(ctx context.Context) error {
			result, err := s.RunOnce(ctx)
			log.Info("recurring invoker pass finished",
				zap.Int("due", result.Due),
				zap.Int("generated", result.Generated),
				zap.Int("locked", result.Locked),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
			)
			if err != nil {
				return fmt.Errorf("recurring run: %w", err)
			}
			return nil
		})
	}

	app := fx.New(append(opts, fx.Invoke(StartScheduler))...)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func init() {
	recurringRunCmd.Flags().Bool("once", false, "Run a single pass and exit")
	recurringRunCmd.Flags().Duration("interval", 0, fmt.Sprintf("Time between passes (default RECURRING_INTERVAL or %s)", time.Hour))

	recurringCmd.AddCommand(recurringRunCmd)
	rootCmd.AddCommand(recurringCmd)
}
