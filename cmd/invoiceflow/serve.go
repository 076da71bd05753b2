package main

import (
	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/justinhw1987/invoiceflow/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Apply migrations and start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(
		infraModules(),
		migration.Module,
		domainModules(),
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
