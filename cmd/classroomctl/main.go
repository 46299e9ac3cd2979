// Command classroomctl runs administrative tasks against the platform store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/app"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/config"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/store"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// cliActor is recorded as the approver of accounts changed from the command line.
var cliActor = auth.Actor{ID: "classroomctl", Role: auth.RoleAdmin}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "classroomctl",
		Short:         "Administer the classroom communication platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(), seedCmd(), approveCmd(), createAdminCmd())
	return cmd
}

// withStack runs fn against the configured backends.
func withStack(cmd *cobra.Command, fn func(*app.Stack) error) error {
	cfg := config.Load()
	stack, err := app.Open(cmd.Context(), cfg, cfg.Logger())
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Postgres schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.StoreBackend == "memory" {
				return errors.New("nothing to migrate with STORE_BACKEND=memory")
			}
			db, err := store.NewDB(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default accounts, a sample group and a welcome message",
		Long: `Create the default admin, HOD, faculty and student accounts, a sample
group with its members and a welcome message. Accounts that already exist
(matched by email) are left untouched, so seeding can be repeated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStack(cmd, func(s *app.Stack) error {
				return seed(cmd.Context(), s, cmd.OutOrStdout())
			})
		},
	}
}

func approveCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a pending account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStack(cmd, func(s *app.Stack) error {
				u, err := approve(cmd.Context(), s.Users, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "approved %s (%s)\n", u.Email, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to approve")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func createAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an approved admin account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStack(cmd, func(s *app.Stack) error {
				u, err := s.Users.Provision(cmd.Context(), user.RegisterInput{
					Name:     name,
					Email:    email,
					Password: password,
					Role:     auth.RoleAdmin,
				}, true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password, at least 6 characters")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func approve(ctx context.Context, users *user.Service, email string) (user.User, error) {
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return user.User{}, err
	}
	if u.Approved {
		return u, nil
	}
	return users.Approve(ctx, cliActor, u.ID)
}
