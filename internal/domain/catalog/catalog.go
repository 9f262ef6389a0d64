// Package catalog holds the in-memory product catalog, backed by a
// session-scoped snapshot so a restart within the session skips the network.
package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/pawstails-storefront/internal/domain/product"
	"github.com/xenking/pawstails-storefront/internal/storage"
)

// CategoryAll is the sentinel category that selects every product.
const CategoryAll = "all"

// ErrUnavailable is recorded when the catalog could not be loaded from the
// remote API. The previous catalog is kept.
var ErrUnavailable = errors.New("products could not be loaded, try again later")

// StockChange describes a stock update applied by ApplyStock.
type StockChange struct {
	ProductID int64
	Name      string
	OldStock  int
	NewStock  int
}

// Catalog is the product catalog cache. It is safe for concurrent use.
type Catalog struct {
	source product.Source
	cache  storage.Store
	key    string
	lg     *zap.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	products   []product.Product
	categories []string
	selected   string
	inflight   int
	err        error
}

// New creates an empty Catalog. Snapshots are written to cache under key.
func New(source product.Source, cache storage.Store, key string, lg *zap.Logger) *Catalog {
	return &Catalog{
		source:     source,
		cache:      cache,
		key:        key,
		lg:         lg,
		categories: []string{CategoryAll},
		selected:   CategoryAll,
	}
}

// Fetch populates the catalog. Unless force is set, a cached snapshot is used
// when present. Otherwise the full list is fetched from the source, replaces
// the catalog and is written back to the cache.
//
// On failure the catalog keeps its previous contents, Err reports
// ErrUnavailable and the wrapped cause is returned. Concurrent calls with the
// same force share a single fetch, which is not cancelled when one of the
// waiting callers gives up; ctx only bounds how long this caller waits.
func (c *Catalog) Fetch(ctx context.Context, force bool) error {
	key := "cached"
	if force {
		key = "force"
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return nil, c.fetch(shared, force)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Catalog) fetch(ctx context.Context, force bool) error {
	c.mu.Lock()
	c.inflight++
	c.err = nil
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}()

	if !force {
		if cached, ok := c.loadSnapshot(ctx); ok {
			c.replace(cached)
			c.lg.Debug("Catalog loaded from session cache", zap.Int("products", len(cached)))
			return nil
		}
	}

	fetched, err := c.source.ListProducts(ctx)
	if err != nil {
		c.mu.Lock()
		c.err = ErrUnavailable
		c.mu.Unlock()
		c.lg.Error("Failed to load products", zap.Error(err))
		return errors.Wrap(err, "list products")
	}
	if fetched == nil {
		fetched = []product.Product{}
	}

	c.replace(fetched)
	c.lg.Info("Catalog loaded from API", zap.Int("products", len(fetched)))

	if err := c.Persist(ctx); err != nil {
		c.lg.Warn("Failed to cache catalog", zap.Error(err))
	}
	return nil
}

func (c *Catalog) loadSnapshot(ctx context.Context) ([]product.Product, bool) {
	var cached []product.Product
	err := storage.GetJSON(ctx, c.cache, c.key, &cached)
	switch {
	case err == nil:
		return cached, cached != nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, false
	default:
		c.lg.Warn("Discarding catalog snapshot",
			zap.String("event", "snapshot_discarded"),
			zap.String("key", c.key),
			zap.Error(err),
		)
		return nil, false
	}
}

// replace swaps the catalog wholesale and recomputes categories.
func (c *Catalog) replace(products []product.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products = slices.Clone(products)
	c.categories = deriveCategories(products)
}

// deriveCategories returns CategoryAll followed by the distinct categories in
// order of first appearance.
func deriveCategories(products []product.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := []string{CategoryAll}
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// Persist writes the current catalog to the session cache.
func (c *Catalog) Persist(ctx context.Context) error {
	c.mu.RLock()
	snapshot := c.products
	c.mu.RUnlock()

	if snapshot == nil {
		snapshot = []product.Product{}
	}
	return storage.SetJSON(ctx, c.cache, c.key, snapshot)
}

// ApplyStock merges fresh stock values into the catalog in place. Only
// products already in the catalog are considered; names, prices and other
// fields are left untouched. It returns the changes applied.
func (c *Catalog) ApplyStock(latest []product.Product) []StockChange {
	fresh := make(map[int64]int, len(latest))
	for _, p := range latest {
		fresh[p.ID] = p.Stock
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var changes []StockChange
	for i := range c.products {
		p := &c.products[i]
		stock, ok := fresh[p.ID]
		if !ok || stock == p.Stock {
			continue
		}
		changes = append(changes, StockChange{
			ProductID: p.ID,
			Name:      p.Name,
			OldStock:  p.Stock,
			NewStock:  stock,
		})
		p.Stock = stock
	}
	return changes
}

// Products returns a copy of the full catalog.
func (c *Catalog) Products() []product.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.products)
}

// Categories returns CategoryAll followed by the distinct product categories.
func (c *Catalog) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.categories)
}

// SelectCategory changes the category used by Filtered. An empty value
// selects CategoryAll.
func (c *Catalog) SelectCategory(category string) {
	if category == "" {
		category = CategoryAll
	}
	c.mu.Lock()
	c.selected = category
	c.mu.Unlock()
}

// SelectedCategory returns the category used by Filtered.
func (c *Catalog) SelectedCategory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Filtered returns the products of the selected category, or all products
// when CategoryAll is selected. It is computed from the current state on
// every call.
func (c *Catalog) Filtered() []product.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filter(c.products, c.selected)
}

// InCategory returns the products of category without changing the selection.
func (c *Catalog) InCategory(category string) []product.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filter(c.products, category)
}

func filter(products []product.Product, category string) []product.Product {
	if category == "" || category == CategoryAll {
		return slices.Clone(products)
	}
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// Lookup returns the product with the given identifier.
func (c *Catalog) Lookup(id int64) (product.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return product.Product{}, false
}

// Loaded reports whether the catalog has been populated at least once.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products != nil
}

// Loading reports whether any Fetch is in progress.
func (c *Catalog) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

// Err returns ErrUnavailable after a failed Fetch, nil otherwise.
func (c *Catalog) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Reset empties the catalog and restores the default selection.
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.categories = []string{CategoryAll}
	c.selected = CategoryAll
	c.err = nil
}
