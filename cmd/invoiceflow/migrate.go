package main

import (
	"context"
	"time"

	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startTimeout = 2 * time.Minute

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the bootstrap user",
	RunE: func(cmd *cobra.Command, args []string) error {
		var log *zap.Logger
		app := fx.New(
			fx.NopLogger,
			infraModules(),
			migration.Module,
			fx.Populate(&log),
		)
		return runOnce(cmd.Context(), app, func(context.Context) error {
			log.Info("migrations applied")
			return nil
		})
	},
}

// runOnce starts app, calls fn while it is running and stops it again.
func runOnce(ctx context.Context, app *fx.App, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
