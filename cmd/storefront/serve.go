package main

import (
	"context"

	sdkapp "github.com/go-faster/sdk/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the storefront HTTP API and poll stock in the background",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := app.LoadConfig(opts.configFile)
			if err != nil {
				return err
			}
			// The SDK owns signals, telemetry exporters and the process exit code.
			sdkapp.Run(func(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry) error {
				return app.Run(ctx, lg, m, cfg)
			})
			return nil
		},
	}
}
