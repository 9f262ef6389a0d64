// Package checkout submits the cart to the commerce API and interprets the
// purchase response. Failures never escape as errors: every call ends in a
// Result.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/cart"
	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
)

// Outcome classifies a checkout attempt.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeEmptyCart       Outcome = "empty_cart"
	OutcomeHTTPError       Outcome = "http_error"
	OutcomeRejected        Outcome = "rejected"
	OutcomeConnectionError Outcome = "connection_error"
)

// User-facing result messages.
const (
	MessageSuccess         = "Purchase completed successfully"
	MessageEmptyCart       = "Your cart is empty"
	MessageRejected        = "Error processing the purchase"
	MessageConnectionError = "Connection error while completing the purchase"
)

// Response is the raw HTTP reply to a purchase submission.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport posts an encoded payload to the purchase endpoint. Any non-nil
// error is treated as a connection failure.
type Transport interface {
	Submit(ctx context.Context, body []byte) (*Response, error)
}

// Request carries the shopper-provided checkout details.
type Request struct {
	Address       string
	PaymentMethod string
	UserID        int64
	AccountID     int64
}

// Result is the outcome of Finalize.
type Result struct {
	Outcome    Outcome
	Message    string
	StatusCode int
	Body       string
	// Receipt is set on success.
	Receipt *receipt.Receipt
}

// OK reports whether the purchase was confirmed.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Options configures a Submitter.
type Options struct {
	// Receipts records successful purchases. Optional.
	Receipts      receipt.Repository
	MeterProvider metric.MeterProvider
	Now           func() time.Time
}

// Submitter turns the cart into a purchase.
type Submitter struct {
	cart      *cart.Store
	transport Transport
	receipts  receipt.Repository
	lg        *zap.Logger
	now       func() time.Time

	outcomes metric.Int64Counter
}

// NewSubmitter creates a Submitter for c posting through transport.
func NewSubmitter(c *cart.Store, transport Transport, lg *zap.Logger, opts Options) (*Submitter, error) {
	if opts.MeterProvider == nil {
		opts.MeterProvider = noop.NewMeterProvider()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	outcomes, err := opts.MeterProvider.Meter("storefront/checkout").Int64Counter("storefront.checkout.outcomes",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create outcomes counter")
	}
	return &Submitter{
		cart:      c,
		transport: transport,
		receipts:  opts.Receipts,
		lg:        lg,
		now:       opts.Now,
		outcomes:  outcomes,
	}, nil
}

// Finalize submits the current cart. An empty cart fails without a network
// call. On a confirmed purchase the submitted lines leave the cart and a
// receipt is recorded; otherwise the cart is left untouched.
func (s *Submitter) Finalize(ctx context.Context, req Request) Result {
	res := s.finalize(ctx, req)
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(res.Outcome))))
	return res
}

func (s *Submitter) finalize(ctx context.Context, req Request) Result {
	items := s.cart.Items()
	if len(items) == 0 {
		return Result{Outcome: OutcomeEmptyCart, Message: MessageEmptyCart}
	}

	payload := Payload{
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		UserID:        req.UserID,
		AccountID:     req.AccountID,
		Lines:         make([]PayloadLine, 0, len(items)),
	}
	for _, it := range items {
		payload.Lines = append(payload.Lines, PayloadLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	resp, err := s.transport.Submit(ctx, EncodePayload(payload))
	if err != nil {
		s.lg.Error("Purchase request failed", zap.Error(err))
		return Result{Outcome: OutcomeConnectionError, Message: MessageConnectionError}
	}

	body := string(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.lg.Warn("Purchase rejected by API",
			zap.Int("status", resp.StatusCode),
			zap.String("body", body),
		)
		return Result{
			Outcome:    OutcomeHTTPError,
			Message:    fmt.Sprintf("%s (status %d)", MessageRejected, resp.StatusCode),
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	reply, err := decodeReply(resp.Body)
	if err != nil {
		s.lg.Warn("Malformed purchase response", zap.Error(err), zap.String("body", body))
	}
	if err != nil || !reply.OK {
		msg := reply.Message
		if msg == "" {
			msg = MessageRejected
		}
		return Result{
			Outcome:    OutcomeRejected,
			Message:    msg,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	// Only the submitted lines were bought; anything added meanwhile stays.
	if err := s.cart.RemovePurchased(ctx, items); err != nil {
		s.lg.Warn("Failed to persist cart after purchase", zap.Error(err))
	}

	return Result{
		Outcome:    OutcomeSuccess,
		Message:    MessageSuccess,
		StatusCode: resp.StatusCode,
		Body:       body,
		Receipt:    s.record(ctx, req, items),
	}
}

// record stores a receipt for a confirmed purchase. A storage failure is
// logged; the purchase itself already succeeded.
func (s *Submitter) record(ctx context.Context, req Request, items []cart.LineItem) *receipt.Receipt {
	totals := cart.ComputeTotals(items, s.cart.TaxRate())
	rec := &receipt.Receipt{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		CreatedAt:     s.now().UTC(),
		Address:       req.Address,
		PaymentMethod: req.PaymentMethod,
		Lines:         make([]receipt.Line, 0, len(items)),
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
	}
	for _, it := range items {
		rec.Lines = append(rec.Lines, receipt.Line{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	if s.receipts != nil {
		if err := s.receipts.Save(ctx, rec); err != nil {
			s.lg.Warn("Failed to save receipt", zap.String("receipt_id", rec.ID), zap.Error(err))
		}
	}
	s.lg.Info("Purchase completed",
		zap.String("receipt_id", rec.ID),
		zap.Int64("user_id", req.UserID),
		zap.String("total", rec.Total.StringFixed(2)),
	)
	return rec
}
