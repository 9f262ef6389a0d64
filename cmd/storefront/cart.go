package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/xenking/pawstails-storefront/internal/app"
	"github.com/xenking/pawstails-storefront/internal/domain/cart"
)

func newCartCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or edit the cart",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show cart lines and totals",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withStorefront(cmd, func(_ context.Context, sf *app.Storefront) error {
					printCart(cmd, sf.Cart)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add PRODUCT_ID [QUANTITY]",
			Short: "Add a product to the cart",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseProductID(args[0])
				if err != nil {
					return err
				}
				qty := 1
				if len(args) == 2 {
					qty, err = strconv.Atoi(args[1])
					if err != nil {
						return errors.Wrap(err, "parse quantity")
					}
				}
				return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
					if err := sf.Catalog.Fetch(ctx, false); err != nil && !sf.Catalog.Loaded() {
						return err
					}
					p, ok := sf.Catalog.Lookup(id)
					if !ok {
						return errors.Errorf("product %d not found", id)
					}
					if err := sf.Cart.Add(ctx, p, qty); err != nil {
						return err
					}
					printCart(cmd, sf.Cart)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "set PRODUCT_ID QUANTITY",
			Short: "Set the quantity of a cart line",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseProductID(args[0])
				if err != nil {
					return err
				}
				return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
					// Unparseable quantities fall back to 1, like the web form.
					if _, _, err := sf.Cart.UpdateQuantity(ctx, id, args[1]); err != nil {
						return err
					}
					printCart(cmd, sf.Cart)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove PRODUCT_ID",
			Short: "Remove a line from the cart",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseProductID(args[0])
				if err != nil {
					return err
				}
				return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
					if !sf.Cart.Remove(ctx, id) {
						fmt.Fprintf(cmd.ErrOrStderr(), "Product %d was not in the cart\n", id)
					}
					printCart(cmd, sf.Cart)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
					return sf.Cart.Clear(ctx)
				})
			},
		},
	)
	return cmd
}

func parseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse product id %q", s)
	}
	return id, nil
}

func printCart(cmd *cobra.Command, c *cart.Store) {
	out := cmd.OutOrStdout()
	items := c.Items()
	if len(items) == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tLINE\tSTOCK")
	for _, it := range items {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\n",
			it.ProductID, it.Name, it.Quantity, it.UnitPrice.StringFixed(2), line.StringFixed(2), it.StockActual)
	}
	_ = tw.Flush()

	t := c.Totals()
	fmt.Fprintf(out, "\nUnits:    %d\nSubtotal: %s\nTax (%s%%): %s\nTotal:    %s\n",
		t.Units,
		t.Subtotal.StringFixed(2),
		c.TaxRate().Shift(2).String(),
		t.Tax.StringFixed(2),
		t.Total.StringFixed(2),
	)
}
