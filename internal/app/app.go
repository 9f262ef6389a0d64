// Package app wires the storefront together: configuration, storage,
// domain components and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/pawstails-storefront/internal/handler"
	"github.com/xenking/pawstails-storefront/pkg/health"
	"github.com/xenking/pawstails-storefront/pkg/httpmiddleware"
)

// Run creates the storefront, starts the stock poller and the HTTP server,
// and handles graceful shutdown. It is the single wiring point of the serve
// command.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("api", cfg.API.BaseURL))

	sf, err := NewStorefront(ctx, cfg, lg, Telemetry{
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create storefront")
	}
	defer func() {
		if err := sf.Close(); err != nil {
			lg.Warn("Failed to close storage", zap.Error(err))
		}
	}()

	// Warm the catalog; the API retries on demand when this fails.
	if err := sf.Catalog.Fetch(ctx, false); err != nil {
		lg.Warn("Initial catalog load failed", zap.Error(err))
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("durable_storage", 5*time.Second, sf.Stores.Durable.Ping)
	healthSvc.AddReadinessCheck("session_storage", 5*time.Second, sf.Stores.Session.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if cfg.Poll.Enabled {
		healthSvc.AddLivenessCheck("stock_poller", time.Second,
			health.FreshnessCheck(sf.Poller.LastSuccess, 10*cfg.Poll.MaxBackoff))
	}
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		sf.Catalog,
		sf.Cart,
		sf.Checkout,
		sf.Accounts,
		sf.Stores.Receipts,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", httpmiddleware.HeaderRequestID},
				Expose:      []string{httpmiddleware.HeaderRequestID},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg.Named("http")),
			httpmiddleware.LogRequests(),
		), "storefront-api",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Poll.Enabled {
		sf.Poller.Start(gCtx)
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		sf.Poller.Stop()
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}
