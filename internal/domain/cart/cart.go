// Package cart implements the shopper's cart: a durable snapshot of line
// items, the mutations that keep quantity and stock invariants, and the
// derived totals.
package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/product"
	"github.com/xenking/pawstails-storefront/internal/storage"
)

// Sentinel errors for cart validation.
var (
	ErrInvalidQuantity = errors.New("please enter a valid quantity")
	ErrNotInCart       = errors.New("product is not in the cart")
)

// InsufficientStockError rejects an add that would exceed the product stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	InCart    int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"could not add to cart: requested quantity is greater than available stock (product %d: %d in cart, %d requested, %d available)",
		e.ProductID, e.InCart, e.Requested, e.Available,
	)
}

// LineItem is one cart entry. Name, price and image are snapshots taken
// when the product was added. JSON names are the persisted snapshot format.
type LineItem struct {
	ProductID   int64           `json:"idProducto"`
	Name        string          `json:"nombre"`
	UnitPrice   decimal.Decimal `json:"precio"`
	Quantity    int             `json:"cantidad"`
	Image       string          `json:"imagen"`
	StockActual int             `json:"stockActual"`
}

// Listener is notified after every mutation with the new contents.
type Listener func(items []LineItem, totals Totals)

// Options configures a Store.
type Options struct {
	// TaxRate defaults to DefaultTaxRate.
	TaxRate       decimal.Decimal
	MeterProvider metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.TaxRate.IsZero() {
		o.TaxRate = DefaultTaxRate
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
}

// Store owns the cart. Every mutation is written through to the durable
// store before the call returns. It is safe for concurrent use.
type Store struct {
	store storage.Store
	key   string
	lg    *zap.Logger
	rate  decimal.Decimal

	mutations metric.Int64Counter

	mu        sync.Mutex
	items     []LineItem
	listeners map[int]Listener
	nextID    int
}

// NewStore creates an empty Store persisted under key.
func NewStore(store storage.Store, key string, lg *zap.Logger, opts Options) (*Store, error) {
	opts.setDefaults()

	mutations, err := opts.MeterProvider.Meter("storefront/cart").Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart mutations by operation and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}

	return &Store{
		store:     store,
		key:       key,
		lg:        lg,
		rate:      opts.TaxRate,
		mutations: mutations,
		listeners: make(map[int]Listener),
	}, nil
}

// storedLine mirrors LineItem with loosely typed counters, so malformed
// snapshots can be normalized instead of rejected.
type storedLine struct {
	ProductID   int64           `json:"idProducto"`
	Name        string          `json:"nombre"`
	UnitPrice   decimal.Decimal `json:"precio"`
	Quantity    any             `json:"cantidad"`
	Image       string          `json:"imagen"`
	StockActual any             `json:"stockActual"`
}

// Load replaces the in-memory cart with the stored snapshot. A missing or
// corrupt snapshot yields an empty cart; only backend failures are returned.
func (s *Store) Load(ctx context.Context) error {
	var stored []storedLine
	err := storage.GetJSON(ctx, s.store, s.key, &stored)

	var decodeErr *storage.DecodeError
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		stored = nil
	case errors.As(err, &decodeErr):
		s.lg.Warn("Discarding cart snapshot",
			zap.String("event", "snapshot_discarded"),
			zap.String("key", s.key),
			zap.Error(err),
		)
		stored = nil
	default:
		s.replace(nil)
		return errors.Wrap(err, "load cart")
	}

	s.replace(normalize(stored))
	return nil
}

// normalize coerces quantities to at least 1 and stock snapshots to at
// least 0. Duplicate lines are merged into the first occurrence.
func normalize(stored []storedLine) []LineItem {
	items := make([]LineItem, 0, len(stored))
	for _, l := range stored {
		qty, ok := parseInt(l.Quantity)
		if !ok {
			qty = 1
		}
		stock, ok := parseInt(l.StockActual)
		if !ok {
			stock = 0
		}
		item := LineItem{
			ProductID:   l.ProductID,
			Name:        l.Name,
			UnitPrice:   l.UnitPrice,
			Quantity:    max(1, qty),
			Image:       l.Image,
			StockActual: max(0, stock),
		}
		if i := indexOf(items, item.ProductID); i >= 0 {
			items[i].Quantity += item.Quantity
			continue
		}
		items = append(items, item)
	}
	return items
}

func (s *Store) replace(items []LineItem) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.notify()
}

func indexOf(items []LineItem, id int64) int {
	return slices.IndexFunc(items, func(it LineItem) bool { return it.ProductID == id })
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Len returns the number of lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Totals computes the current subtotal, tax and total.
func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ComputeTotals(s.items, s.rate)
}

// TaxRate returns the configured tax rate.
func (s *Store) TaxRate() decimal.Decimal { return s.rate }

// Add puts quantity units of p in the cart. The resulting line quantity may
// not exceed p.Stock; a rejected add leaves the cart unchanged.
func (s *Store) Add(ctx context.Context, p product.Product, quantity int) error {
	if quantity < 1 {
		s.count(ctx, "add", "invalid")
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	i := indexOf(s.items, p.ID)
	inCart := 0
	if i >= 0 {
		inCart = s.items[i].Quantity
	}
	if inCart+quantity > p.Stock {
		s.mu.Unlock()
		s.count(ctx, "add", "insufficient_stock")
		return &InsufficientStockError{
			ProductID: p.ID,
			Requested: quantity,
			InCart:    inCart,
			Available: p.Stock,
		}
	}

	if i >= 0 {
		s.items[i].Quantity += quantity
		s.items[i].StockActual = p.Stock
	} else {
		s.items = append(s.items, LineItem{
			ProductID:   p.ID,
			Name:        p.Name,
			UnitPrice:   p.Price,
			Quantity:    quantity,
			Image:       p.Image(),
			StockActual: p.Stock,
		})
	}
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.lg.Debug("Added to cart", zap.Int64("product_id", p.ID), zap.Int("quantity", quantity))
	s.count(ctx, "add", "ok")
	s.notify()
	return nil
}

// Remove deletes the line for productID. Removing an absent product is not
// an error; the snapshot is written either way. It reports whether a line
// was removed.
func (s *Store) Remove(ctx context.Context, productID int64) bool {
	s.mu.Lock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(it LineItem) bool { return it.ProductID == productID })
	removed := len(s.items) != before
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.count(ctx, "remove", "ok")
	s.notify()
	return removed
}

// UpdateQuantity sets the quantity of the line for productID from a loosely
// typed value, see ParseQuantity. The stock snapshot is not enforced here.
// The snapshot is written only when the quantity changed.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, raw any) (qty int, changed bool, err error) {
	qty = ParseQuantity(raw)

	s.mu.Lock()
	i := indexOf(s.items, productID)
	if i < 0 {
		s.mu.Unlock()
		return 0, false, ErrNotInCart
	}
	if s.items[i].Quantity == qty {
		s.mu.Unlock()
		return qty, false, nil
	}
	s.items[i].Quantity = qty
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.count(ctx, "update", "ok")
	s.notify()
	return qty, true, nil
}

// ApplyStock refreshes the stock snapshot of lines whose product appears in
// stock. Quantities are never changed. The snapshot is written when at least
// one line changed; the number of changed lines is returned.
func (s *Store) ApplyStock(ctx context.Context, stock map[int64]int) int {
	s.mu.Lock()
	updated := 0
	for i := range s.items {
		v, ok := stock[s.items[i].ProductID]
		if !ok || s.items[i].StockActual == v {
			continue
		}
		s.items[i].StockActual = v
		updated++
	}
	if updated > 0 {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	if updated > 0 {
		s.notify()
	}
	return updated
}

// Clear empties the cart and writes the empty snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.items = []LineItem{}
	err := storage.SetJSON(ctx, s.store, s.key, s.items)
	s.mu.Unlock()

	s.count(ctx, "clear", "ok")
	s.notify()
	if err != nil {
		return errors.Wrap(err, "persist cart")
	}
	return nil
}

// RemovePurchased subtracts the quantities of purchased from the matching
// lines and drops lines that reach zero, then writes the snapshot. Lines
// added or raised after purchased was taken keep the difference.
func (s *Store) RemovePurchased(ctx context.Context, purchased []LineItem) error {
	bought := make(map[int64]int, len(purchased))
	for _, it := range purchased {
		bought[it.ProductID] += it.Quantity
	}

	s.mu.Lock()
	kept := make([]LineItem, 0, len(s.items))
	for _, it := range s.items {
		it.Quantity -= bought[it.ProductID]
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	s.items = kept
	err := storage.SetJSON(ctx, s.store, s.key, s.items)
	s.mu.Unlock()

	s.count(ctx, "remove_purchased", "ok")
	s.notify()
	if err != nil {
		return errors.Wrap(err, "persist cart")
	}
	return nil
}

// Reset drops the in-memory cart without touching the stored snapshot.
func (s *Store) Reset() {
	s.replace(nil)
}

// OnChange registers l to be called after every mutation. The returned
// function unregisters it.
func (s *Store) OnChange(l Listener) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	items := slices.Clone(s.items)
	totals := ComputeTotals(items, s.rate)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(items, totals)
	}
}

// persistLocked writes the snapshot. A failed write keeps the in-memory
// mutation and is logged. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	items := s.items
	if items == nil {
		items = []LineItem{}
	}
	if err := storage.SetJSON(ctx, s.store, s.key, items); err != nil {
		s.lg.Warn("Failed to persist cart", zap.String("key", s.key), zap.Error(err))
	}
}

func (s *Store) count(ctx context.Context, op, result string) {
	s.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}
