// Command storefront runs the storefront API and offers one-shot commands
// against the same catalog, cart and account state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/pawstails-storefront/internal/app"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "storefront",
		Short: "Pet store storefront: catalog, cart, stock sync and checkout",
		Long: `storefront keeps a shopper's cart reconciled with the commerce API.

Run "storefront serve" for the local HTTP API, or use the one-shot
commands to browse the catalog, edit the cart and check out from the
terminal. Configuration comes from a YAML file, STOREFRONT_* environment
variables and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for one-shot commands (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(opts),
		newProductsCmd(opts),
		newCategoriesCmd(opts),
		newSyncCmd(opts),
		newCartCmd(opts),
		newCheckoutCmd(opts),
		newReceiptsCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
	)
	return root
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(o.logLevel)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// withStorefront opens the storefront for a one-shot command and closes it
// after fn returns. Telemetry is disabled.
func (o *rootOptions) withStorefront(cmd *cobra.Command, fn func(ctx context.Context, sf *app.Storefront) error) error {
	cfg, err := app.LoadConfig(o.configFile)
	if err != nil {
		return err
	}
	lg, err := o.logger()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx := cmd.Context()
	sf, err := app.NewStorefront(ctx, cfg, lg, app.Telemetry{})
	if err != nil {
		return err
	}
	defer func() {
		if err := sf.Close(); err != nil {
			lg.Warn("Failed to close storage", zap.Error(err))
		}
	}()
	return fn(ctx, sf)
}
