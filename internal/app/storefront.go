package app

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/commerce"
	"github.com/xenking/pawstails-storefront/internal/domain/cart"
	"github.com/xenking/pawstails-storefront/internal/domain/catalog"
	"github.com/xenking/pawstails-storefront/internal/domain/checkout"
	"github.com/xenking/pawstails-storefront/internal/domain/session"
	"github.com/xenking/pawstails-storefront/internal/domain/stock"
)

// Storefront is one shopper session: the catalog, the cart, the stock
// poller, checkout and the signed-in account, wired to their stores. It is
// constructed once per process and shared by the API and the CLI.
type Storefront struct {
	Stores   *Stores
	Client   *commerce.Client
	Catalog  *catalog.Catalog
	Cart     *cart.Store
	Poller   *stock.Poller
	Checkout *checkout.Submitter
	Accounts *session.Manager
}

// Telemetry providers used by the storefront components. Nil providers
// disable instrumentation.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewStorefront opens storage, builds every component and loads the cart
// snapshot. Close releases it.
func NewStorefront(ctx context.Context, cfg *Config, lg *zap.Logger, tel Telemetry) (_ *Storefront, rerr error) {
	rate, err := cfg.TaxRate()
	if err != nil {
		return nil, err
	}

	stores, err := OpenStores(ctx, cfg.Storage, cfg.Keys, lg.Named("storage"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			_ = stores.Close()
		}
	}()

	client, err := commerce.New(commerce.Config{
		BaseURL:      cfg.API.BaseURL,
		ProductsPath: cfg.API.ProductsPath,
		PurchasePath: cfg.API.PurchasePath,
		Timeout:      cfg.API.Timeout,
	}, commerce.Options{
		TracerProvider: tel.TracerProvider,
		MeterProvider:  tel.MeterProvider,
		Logger:         lg.Named("commerce"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create commerce client")
	}

	cat := catalog.New(client, stores.Session, cfg.Keys.Catalog, lg.Named("catalog"))

	c, err := cart.NewStore(stores.Durable, cfg.Keys.Cart, lg.Named("cart"), cart.Options{
		TaxRate:       rate,
		MeterProvider: tel.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	if err := c.Load(ctx); err != nil {
		return nil, errors.Wrap(err, "load cart")
	}

	poller, err := stock.NewPoller(client, cat, c, stock.Config{
		Interval:     cfg.Poll.Interval,
		Timeout:      cfg.Poll.Timeout,
		BackoffAfter: cfg.Poll.BackoffAfter,
		MaxBackoff:   cfg.Poll.MaxBackoff,
	}, lg.Named("stock"), tel.MeterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "create poller")
	}

	submitter, err := checkout.NewSubmitter(c, client, lg.Named("checkout"), checkout.Options{
		Receipts:      stores.Receipts,
		MeterProvider: tel.MeterProvider,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout")
	}

	accounts := session.NewManager(stores.Durable, session.Keys{
		Account: cfg.Keys.Account,
		User:    cfg.Keys.User,
	}, lg.Named("session"))

	return &Storefront{
		Stores:   stores,
		Client:   client,
		Catalog:  cat,
		Cart:     c,
		Poller:   poller,
		Checkout: submitter,
		Accounts: accounts,
	}, nil
}

// Close stops the poller and releases storage.
func (s *Storefront) Close() error {
	s.Poller.Stop()
	return s.Stores.Close()
}
