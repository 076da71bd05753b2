package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/auth"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	"github.com/justinhw1987/invoiceflow/internal/customer"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	"github.com/justinhw1987/invoiceflow/internal/export"
	"github.com/justinhw1987/invoiceflow/internal/invoice"
	"github.com/justinhw1987/invoiceflow/internal/observability"
	"github.com/justinhw1987/invoiceflow/internal/payment"
	"github.com/justinhw1987/invoiceflow/internal/providers"
	"github.com/justinhw1987/invoiceflow/internal/ratelimit"
	"github.com/justinhw1987/invoiceflow/internal/recurring"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "invoiceflow",
	Short: "Invoicing for small businesses",
	Long: `invoiceflow serves the invoicing API and runs its maintenance jobs.

Without a subcommand it starts the HTTP server.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "invoiceflow: %v\n", err)
		os.Exit(1)
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func infraModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

// domainModules is everything invoice generation depends on, shared by the
// HTTP server and the recurring invoker.
func domainModules() fx.Option {
	return fx.Options(
		auth.Module,
		customer.Module,
		invoice.Module,
		recurring.Module,
		payment.Module,
		providers.Module,
		delivery.Module,
		export.Module,
		ratelimit.Module,
	)
}
