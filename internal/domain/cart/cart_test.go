package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/pawstails-storefront/internal/domain/product"
	"github.com/xenking/pawstails-storefront/internal/storage"
	"github.com/xenking/pawstails-storefront/internal/storage/memory"
)

const cartKey = "carrito"

// --- Mock implementations ---

// countingStore records writes to the wrapped store.
type countingStore struct {
	storage.Store
	sets   int
	setErr error
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	return s.Store.Set(ctx, key, value)
}

// --- Helpers ---

func newTestProduct(id int64, price string, stock int) product.Product {
	return product.Product{
		ID:     id,
		Name:   "Croquetas",
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Images: []string{"/img/a.png", "/img/b.png"},
	}
}

func newTestStore(t *testing.T, backend storage.Store) *Store {
	t.Helper()
	s, err := NewStore(backend, cartKey, zap.NewNop(), Options{})
	require.NoError(t, err)
	return s
}

func storedItems(t *testing.T, backend storage.Store) []LineItem {
	t.Helper()
	var items []LineItem
	require.NoError(t, storage.GetJSON(context.Background(), backend, cartKey, &items))
	return items
}

// --- Tests ---

func TestAdd_NewLine(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := newTestStore(t, backend)

	for _, q := range []int{1, 3, 7} {
		s.Reset()
		require.NoError(t, s.Add(ctx, newTestProduct(1, "12.50", 7), q))

		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, int64(1), items[0].ProductID)
		assert.Equal(t, q, items[0].Quantity)
		assert.Equal(t, 7, items[0].StockActual)
		assert.Equal(t, "/img/a.png", items[0].Image)
		assert.True(t, decimal.RequireFromString("12.50").Equal(items[0].UnitPrice))
	}

	assert.Len(t, storedItems(t, backend), 1)
}

func TestAdd_PlaceholderImage(t *testing.T) {
	s := newTestStore(t, memory.New())
	p := newTestProduct(1, "1", 5)
	p.Images = nil

	require.NoError(t, s.Add(context.Background(), p, 1))
	assert.Equal(t, product.PlaceholderImage, s.Items()[0].Image)
}

func TestAdd_ExistingLineIncrements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New())

	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 10), 2))
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 9), 3))

	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 9, items[0].StockActual)
}

func TestAdd_ExceedsStock(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: memory.New()}
	s := newTestStore(t, backend)

	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 5), 3))
	before := s.Items()
	sets := backend.sets

	err := s.Add(ctx, newTestProduct(1, "2", 5), 3)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.InCart)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, before, s.Items())
	assert.Equal(t, sets, backend.sets, "rejected add must not persist")
}

func TestAdd_InvalidQuantity(t *testing.T) {
	s := newTestStore(t, memory.New())

	for _, q := range []int{0, -1} {
		err := s.Add(context.Background(), newTestProduct(1, "2", 5), q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Empty(t, s.Items())
}

func TestAdd_PersistFailureKeepsMutation(t *testing.T) {
	backend := &countingStore{Store: memory.New(), setErr: errors.New("disk full")}
	s := newTestStore(t, backend)

	require.NoError(t, s.Add(context.Background(), newTestProduct(1, "2", 5), 1))
	assert.Len(t, s.Items(), 1)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: memory.New()}
	s := newTestStore(t, backend)
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 5), 1))
	require.NoError(t, s.Add(ctx, newTestProduct(2, "3", 5), 1))

	assert.True(t, s.Remove(ctx, 1))
	require.Len(t, s.Items(), 1)
	assert.Equal(t, int64(2), s.Items()[0].ProductID)

	sets := backend.sets
	assert.False(t, s.Remove(ctx, 42))
	assert.Equal(t, sets+1, backend.sets, "remove always persists")
	assert.Len(t, storedItems(t, backend), 1)
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: memory.New()}
	s := newTestStore(t, backend)
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 5), 2))

	tests := []struct {
		name    string
		raw     any
		want    int
		changed bool
	}{
		{name: "number", raw: 4, want: 4, changed: true},
		{name: "same value", raw: "4", want: 4, changed: false},
		{name: "above stock", raw: 50, want: 50, changed: true},
		{name: "garbage", raw: "abc", want: 1, changed: true},
		{name: "zero", raw: 0, want: 1, changed: false},
		{name: "nil", raw: nil, want: 1, changed: false},
		{name: "float", raw: 3.9, want: 3, changed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets := backend.sets
			qty, changed, err := s.UpdateQuantity(ctx, 1, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, qty)
			assert.Equal(t, tt.changed, changed)
			assert.Equal(t, tt.want, s.Items()[0].Quantity)
			if tt.changed {
				assert.Equal(t, sets+1, backend.sets)
			} else {
				assert.Equal(t, sets, backend.sets)
			}
		})
	}

	_, _, err := s.UpdateQuantity(ctx, 99, 2)
	assert.ErrorIs(t, err, ErrNotInCart)
}

func TestApplyStock(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: memory.New()}
	s := newTestStore(t, backend)
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 5), 2))
	require.NoError(t, s.Add(ctx, newTestProduct(2, "2", 5), 1))

	sets := backend.sets
	assert.Equal(t, 0, s.ApplyStock(ctx, map[int64]int{1: 5, 7: 1}))
	assert.Equal(t, sets, backend.sets)

	assert.Equal(t, 1, s.ApplyStock(ctx, map[int64]int{1: 1}))
	items := s.Items()
	assert.Equal(t, 1, items[0].StockActual)
	assert.Equal(t, 2, items[0].Quantity, "quantity is never changed by a stock refresh")
	assert.Equal(t, 5, items[1].StockActual)
	assert.Equal(t, 1, storedItems(t, backend)[0].StockActual)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := newTestStore(t, backend)
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 5), 2))

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, s.Items())
	assert.Empty(t, storedItems(t, backend))
}

func TestRemovePurchased(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: memory.New()}
	s := newTestStore(t, backend)
	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 9), 2))
	require.NoError(t, s.Add(ctx, newTestProduct(2, "3", 9), 1))
	purchased := s.Items()

	require.NoError(t, s.Add(ctx, newTestProduct(1, "2", 9), 3))
	require.NoError(t, s.Add(ctx, newTestProduct(3, "1", 9), 1))
	writes := backend.sets

	require.NoError(t, s.RemovePurchased(ctx, purchased))

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(3), items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, writes+1, backend.sets)
	assert.Len(t, storedItems(t, backend), 2)

	require.NoError(t, s.RemovePurchased(ctx, items))
	assert.Empty(t, s.Items())
	assert.Empty(t, storedItems(t, backend))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		backend := memory.New()
		s := newTestStore(t, backend)
		require.NoError(t, s.Add(ctx, newTestProduct(1, "2.25", 5), 2))

		reloaded := newTestStore(t, backend)
		require.NoError(t, reloaded.Load(ctx))
		assert.Equal(t, s.Items(), reloaded.Items())
	})

	t.Run("absent", func(t *testing.T) {
		s := newTestStore(t, memory.New())
		require.NoError(t, s.Load(ctx))
		assert.Empty(t, s.Items())
	})

	t.Run("corrupt", func(t *testing.T) {
		backend := memory.New()
		require.NoError(t, backend.Set(ctx, cartKey, []byte(`{"not":"a list"`)))
		core, logs := observer.New(zap.WarnLevel)
		s, err := NewStore(backend, cartKey, zap.New(core), Options{})
		require.NoError(t, err)
		require.NoError(t, s.Load(ctx))
		assert.Empty(t, s.Items())

		entries := logs.FilterField(zap.String("event", "snapshot_discarded")).All()
		require.Len(t, entries, 1)
		assert.Equal(t, cartKey, entries[0].ContextMap()["key"])
	})

	t.Run("normalizes counters", func(t *testing.T) {
		backend := memory.New()
		raw := `[
			{"idProducto":1,"nombre":"a","precio":2,"cantidad":0,"imagen":"x","stockActual":-4},
			{"idProducto":2,"nombre":"b","precio":"3.5","cantidad":"3","imagen":"y"},
			{"idProducto":3,"nombre":"c","precio":1,"cantidad":null,"imagen":"z","stockActual":"lots"}
		]`
		require.NoError(t, backend.Set(ctx, cartKey, []byte(raw)))
		s := newTestStore(t, backend)
		require.NoError(t, s.Load(ctx))

		items := s.Items()
		require.Len(t, items, 3)
		assert.Equal(t, 1, items[0].Quantity)
		assert.Equal(t, 0, items[0].StockActual)
		assert.Equal(t, 3, items[1].Quantity)
		assert.Equal(t, 0, items[1].StockActual)
		assert.Equal(t, 1, items[2].Quantity)
		assert.Equal(t, 0, items[2].StockActual)
	})

	t.Run("merges duplicate lines", func(t *testing.T) {
		backend := memory.New()
		raw, err := json.Marshal([]LineItem{
			{ProductID: 1, Quantity: 2, StockActual: 9},
			{ProductID: 1, Quantity: 3, StockActual: 9},
		})
		require.NoError(t, err)
		require.NoError(t, backend.Set(ctx, cartKey, raw))

		s := newTestStore(t, backend)
		require.NoError(t, s.Load(ctx))
		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 5, items[0].Quantity)
	})
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, memory.New())

	var got []Totals
	cancel := s.OnChange(func(_ []LineItem, totals Totals) {
		got = append(got, totals)
	})

	require.NoError(t, s.Add(ctx, newTestProduct(1, "10", 5), 2))
	require.Len(t, got, 1)
	assert.Equal(t, "20", got[0].Subtotal.String())
	assert.Equal(t, "3", got[0].Tax.String())
	assert.Equal(t, "23", got[0].Total.String())

	cancel()
	s.Remove(ctx, 1)
	assert.Len(t, got, 1)
}
