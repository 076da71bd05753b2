package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justinhw1987/invoiceflow/internal/auth"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user who can sign in",
	Long: `Create a user account. There is no public sign-up; accounts are
created here or through the BOOTSTRAP_ADMIN_* settings.`,
	RunE: runUserCreate,
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")
	company, _ := cmd.Flags().GetString("company")

	if strings.TrimSpace(email) == "" || password == "" {
		return errors.New("--email and --password are required")
	}

	var authsvc authdomain.Service
	app := fx.New(
		fx.NopLogger,
		infraModules(),
		migration.Module,
		auth.Module,
		fx.Populate(&authsvc),
	)
	return runOnce(cmd.Context(), app, func(ctx context.Context) error {
		user, err := authsvc.CreateUser(ctx, authdomain.CreateUserRequest{
			Email:       email,
			Password:    password,
			DisplayName: name,
			CompanyName: company,
		})
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
		return nil
	})
}

func init() {
	userCreateCmd.Flags().String("email", "", "Sign-in email address")
	userCreateCmd.Flags().String("password", "", "Initial password")
	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("company", "", "Company name shown on invoices")

	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}
