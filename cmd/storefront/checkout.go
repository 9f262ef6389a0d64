package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/pawstails-storefront/internal/app"
	"github.com/xenking/pawstails-storefront/internal/domain/checkout"
)

func newCheckoutCmd(opts *rootOptions) *cobra.Command {
	var address, payment string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Submit the cart as a purchase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address = strings.TrimSpace(address)
			payment = strings.TrimSpace(payment)
			if address == "" || payment == "" {
				return errors.New("--address and --payment are required")
			}
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				acc, err := sf.Accounts.RequireCheckout(ctx)
				if err != nil {
					return err
				}
				res := sf.Checkout.Finalize(ctx, checkout.Request{
					Address:       address,
					PaymentMethod: payment,
					UserID:        int64(acc.UserID),
					AccountID:     int64(acc.AccountID),
				})
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, res.Message)
				if !res.OK() {
					return errors.Errorf("checkout %s", res.Outcome)
				}
				if res.Receipt != nil {
					fmt.Fprintf(out, "Receipt %s: total %s\n", res.Receipt.ID, res.Receipt.Total.StringFixed(2))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Delivery address")
	cmd.Flags().StringVar(&payment, "payment", "", "Payment method")
	return cmd
}

func newReceiptsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipts",
		Short: "List receipts of the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				acc, err := sf.Accounts.Current(ctx)
				if err != nil {
					return err
				}
				list, err := sf.Stores.Receipts.List(ctx, int64(acc.UserID))
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tDATE\tLINES\tTOTAL")
				for _, r := range list {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
						r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), len(r.Lines), r.Total.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}
}
