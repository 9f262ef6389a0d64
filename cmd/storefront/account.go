package main

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/pawstails-storefront/internal/app"
	"github.com/xenking/pawstails-storefront/internal/domain/session"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		acc       session.Account
		userID    int64
		accountID int64
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the signed-in account used for checkout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc.UserID = session.ID(userID)
			acc.AccountID = session.ID(accountID)
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				if err := sf.Accounts.Login(ctx, acc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", acc.DisplayName())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID (IdUsuario)")
	cmd.Flags().Int64Var(&accountID, "account-id", 0, "Account ID (IdCuenta)")
	cmd.Flags().StringVar(&acc.Role, "role", "Cliente", "Account role")
	cmd.Flags().StringVar(&acc.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&acc.Email, "email", "", "E-mail address")
	cmd.Flags().StringVar(&acc.NationalID, "national-id", "", "National ID (cedula)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				return sf.Accounts.Logout(ctx)
			})
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				acc, err := sf.Accounts.Current(ctx)
				if errors.Is(err, session.ErrNoSession) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
					return nil
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "User:    %s (%d)\n", acc.DisplayName(), acc.UserID)
				fmt.Fprintf(out, "Account: %d\n", acc.AccountID)
				fmt.Fprintf(out, "Role:    %s\n", acc.Role)
				if acc.IsAdmin() {
					fmt.Fprintln(out, "Administrator")
				}
				return nil
			})
		},
	}
}
