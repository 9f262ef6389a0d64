// Package commerce is the HTTP client for the remote commerce API.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/checkout"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

const (
	maxProductsBody = 8 << 20
	maxReplyBody    = 1 << 20
	maxErrorBody    = 4 << 10
)

var (
	_ product.Source     = (*Client)(nil)
	_ checkout.Transport = (*Client)(nil)
)

// Config locates the remote API.
type Config struct {
	BaseURL      string
	ProductsPath string
	PurchasePath string
	Timeout      time.Duration
}

// Options carries optional collaborators for New.
type Options struct {
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *zap.Logger
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP error! status: %d", e.Op, e.StatusCode)
}

// Client talks to the commerce API.
type Client struct {
	http        *http.Client
	productsURL string
	purchaseURL string
	tracer      trace.Tracer
	lg          *zap.Logger
}

// New creates a Client for cfg.
func New(cfg Config, opts Options) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(opts.Transport,
				otelhttp.WithTracerProvider(opts.TracerProvider),
				otelhttp.WithMeterProvider(opts.MeterProvider),
			),
		},
		productsURL: base.JoinPath(cfg.ProductsPath).String(),
		purchaseURL: base.JoinPath(cfg.PurchasePath).String(),
		tracer:      opts.TracerProvider.Tracer("storefront/commerce"),
		lg:          opts.Logger,
	}, nil
}

// ListProducts fetches the full product list.
func (c *Client) ListProducts(ctx context.Context) (_ []product.Product, rerr error) {
	ctx, span := c.tracer.Start(ctx, "commerce.ListProducts", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, rerr) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productsURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError("list products", resp)
	}

	var products []product.Product
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProductsBody)).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// Submit posts an encoded purchase payload. Any HTTP status is returned as
// a Response; only transport failures are errors.
func (c *Client) Submit(ctx context.Context, body []byte) (_ *checkout.Response, rerr error) {
	ctx, span := c.tracer.Start(ctx, "commerce.Submit", trace.WithSpanKind(trace.SpanKindClient))
	defer func() { endSpan(span, rerr) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.purchaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	key := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "submit purchase")
	}
	defer func() { _ = resp.Body.Close() }()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBody))
	if err != nil {
		return nil, errors.Wrap(err, "read purchase reply")
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.lg.Debug("Purchase submitted", zap.String("idempotency_key", key), zap.Int("status", resp.StatusCode))

	return &checkout.Response{StatusCode: resp.StatusCode, Body: reply}, nil
}

func newStatusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
