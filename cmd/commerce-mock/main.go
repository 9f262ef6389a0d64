// Command commerce-mock serves an in-memory commerce API with the product
// list and purchase endpoints the storefront talks to. It is meant for local
// development and demos.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/db"
	"github.com/xenking/pawstails-storefront/internal/commerce/commercetest"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
	"github.com/xenking/pawstails-storefront/pkg/httpmiddleware"
)

func main() {
	var (
		addr         string
		prefix       string
		productsFile string
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:8091", "listen address")
	flag.StringVar(&prefix, "prefix", "/api/gestion", "path prefix of the API")
	flag.StringVar(&productsFile, "products-file", "", "product list in the API wire format (defaults to the embedded seed)")
	flag.Parse()

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		products, err := loadProducts(productsFile)
		if err != nil {
			return err
		}
		lg.Info("Loaded products", zap.Int("count", len(products)))

		fake := commercetest.NewFake(products)
		server := &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: time.Second,
			Handler: httpmiddleware.Wrap(http.StripPrefix(prefix, fake.Handler()),
				httpmiddleware.Recovery(),
				httpmiddleware.RequestID(),
				httpmiddleware.InjectLogger(lg),
				httpmiddleware.LogRequests(),
			),
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		lg.Info("Commerce mock listening", zap.String("addr", addr), zap.String("prefix", prefix))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})
}

func loadProducts(path string) ([]product.Product, error) {
	data := db.SeedProducts
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, errors.Wrap(err, "read products file")
		}
	}
	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products")
	}
	return products, nil
}
