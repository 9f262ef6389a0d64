// Package stock keeps catalog and cart stock levels in sync with the remote
// API by polling it in the background.
package stock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/cart"
	"github.com/xenking/pawstails-storefront/internal/domain/catalog"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

// Config controls the poll schedule.
type Config struct {
	// Interval between the end of one tick and the start of the next.
	Interval time.Duration
	// Timeout bounds a single tick.
	Timeout time.Duration
	// BackoffAfter is the number of consecutive failures after which the
	// delay grows exponentially instead of staying at Interval.
	BackoffAfter int
	// MaxBackoff caps the delay while backing off.
	MaxBackoff time.Duration
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	if c.BackoffAfter <= 0 {
		c.BackoffAfter = 3
	}
	if c.MaxBackoff < c.Interval {
		c.MaxBackoff = max(2*time.Minute, c.Interval)
	}
}

// TickResult describes one successful reconciliation.
type TickResult struct {
	Changes   []catalog.StockChange
	CartLines int
}

// Poller periodically refreshes stock levels. At most one schedule runs at
// a time.
type Poller struct {
	source  product.Source
	catalog *catalog.Catalog
	cart    *cart.Store
	cfg     Config
	lg      *zap.Logger

	ticks   metric.Int64Counter
	changes metric.Int64Counter
	lastOK  atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped Poller. A nil meter provider disables metrics.
func NewPoller(
	source product.Source,
	cat *catalog.Catalog,
	c *cart.Store,
	cfg Config,
	lg *zap.Logger,
	mp metric.MeterProvider,
) (*Poller, error) {
	cfg.setDefaults()
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter("storefront/stock")

	ticks, err := meter.Int64Counter("storefront.stock.ticks",
		metric.WithDescription("Stock poll ticks by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create ticks counter")
	}
	changes, err := meter.Int64Counter("storefront.stock.changes",
		metric.WithDescription("Catalog stock values changed by polling"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create changes counter")
	}

	return &Poller{
		source:  source,
		catalog: cat,
		cart:    c,
		cfg:     cfg,
		lg:      lg,
		ticks:   ticks,
		changes: changes,
	}, nil
}

// Start begins polling. A running schedule is stopped first. Polling ends
// when Stop is called or ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	p.lg.Info("Stock polling started", zap.Duration("interval", p.cfg.Interval))
	go p.loop(ctx, done)
}

// Stop cancels the schedule, including a tick in flight, and waits for it to
// exit. Calling Stop on a stopped Poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
	p.lg.Info("Stock polling stopped")
}

// Running reports whether a schedule is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// LastSuccess returns the time of the last successful tick, or the zero
// time.
func (p *Poller) LastSuccess() time.Time {
	ns := p.lastOK.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Interval returns the configured delay between ticks.
func (p *Poller) Interval() time.Duration { return p.cfg.Interval }

func (p *Poller) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.Interval
	bo.MaxInterval = p.cfg.MaxBackoff
	// Jitter would let a backed-off delay drop below Interval.
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	bo := p.newBackOff()
	failures := 0

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay := p.cfg.Interval
		if _, err := p.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if failures >= p.cfg.BackoffAfter {
				delay = max(bo.NextBackOff(), p.cfg.Interval)
			}
			p.lg.Warn("Stock update failed",
				zap.String("event", "stock_poll_failed"),
				zap.Int("consecutive_failures", failures),
				zap.Duration("next_delay", delay),
				zap.Error(err),
			)
		} else if failures > 0 {
			failures = 0
			bo.Reset()
		}
		timer.Reset(delay)
	}
}

// Tick fetches the product list once and merges changed stock values into
// the catalog and the matching cart lines. On failure no state is touched.
func (p *Poller) Tick(ctx context.Context) (TickResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	latest, err := p.source.ListProducts(ctx)
	if err != nil {
		p.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return TickResult{}, errors.Wrap(err, "fetch stock")
	}

	changes := p.catalog.ApplyStock(latest)
	stock := make(map[int64]int, len(changes))
	for _, c := range changes {
		p.lg.Info("Stock updated",
			zap.Int64("product_id", c.ProductID),
			zap.String("name", c.Name),
			zap.Int("old", c.OldStock),
			zap.Int("new", c.NewStock),
		)
		stock[c.ProductID] = c.NewStock
	}

	res := TickResult{Changes: changes}
	if len(stock) > 0 {
		res.CartLines = p.cart.ApplyStock(ctx, stock)
	}
	if p.catalog.Loaded() {
		if err := p.catalog.Persist(ctx); err != nil {
			p.lg.Warn("Failed to cache catalog", zap.Error(err))
		}
	}

	p.lastOK.Store(time.Now().UnixNano())
	p.ticks.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	p.changes.Add(ctx, int64(len(changes)))
	return res, nil
}
