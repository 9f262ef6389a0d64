package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xenking/pawstails-storefront/internal/app"
	"github.com/xenking/pawstails-storefront/internal/domain/catalog"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

func newProductsCmd(opts *rootOptions) *cobra.Command {
	var (
		category string
		refresh  bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List catalog products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				if err := sf.Catalog.Fetch(ctx, refresh); err != nil && !sf.Catalog.Loaded() {
					return err
				}
				printProducts(cmd, sf.Catalog.InCategory(category))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", catalog.CategoryAll, "Only list products of this category")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cached catalog")
	return cmd
}

func newCategoriesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List catalog categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				if err := sf.Catalog.Fetch(ctx, false); err != nil && !sf.Catalog.Loaded() {
					return err
				}
				for _, c := range sf.Catalog.Categories() {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			})
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh stock levels once and reconcile the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withStorefront(cmd, func(ctx context.Context, sf *app.Storefront) error {
				if err := sf.Catalog.Fetch(ctx, false); err != nil && !sf.Catalog.Loaded() {
					return err
				}
				res, err := sf.Poller.Tick(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(res.Changes) == 0 {
					fmt.Fprintln(out, "Stock unchanged")
					return nil
				}
				for _, c := range res.Changes {
					fmt.Fprintf(out, "%d\t%s\t%d -> %d\n", c.ProductID, c.Name, c.OldStock, c.NewStock)
				}
				fmt.Fprintf(out, "%d cart line(s) updated\n", res.CartLines)
				return nil
			})
		},
	}
}

func printProducts(cmd *cobra.Command, products []product.Product) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Stock)
	}
	_ = tw.Flush()
}
