package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/cart"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
	"github.com/xenking/pawstails-storefront/internal/storage"
	"github.com/xenking/pawstails-storefront/internal/storage/memory"
)

// --- Mock implementations ---

type mockTransport struct {
	resp  *Response
	err   error
	calls int
	last  []byte
	// during runs while the request is in flight.
	during func()
}

func (m *mockTransport) Submit(_ context.Context, body []byte) (*Response, error) {
	m.calls++
	m.last = body
	if m.during != nil {
		m.during()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

// --- Helpers ---

const cartKey = "carrito"

type fixture struct {
	backend   storage.Store
	cart      *cart.Store
	transport *mockTransport
	receipts  *receipt.KVRepository
	submitter *Submitter
}

func newFixture(t *testing.T, resp *Response, err error) *fixture {
	t.Helper()
	backend := memory.New()
	c, cerr := cart.NewStore(backend, cartKey, zap.NewNop(), cart.Options{})
	require.NoError(t, cerr)

	tr := &mockTransport{resp: resp, err: err}
	receipts := receipt.NewKVRepository(backend, "facturas")
	s, serr := NewSubmitter(c, tr, zap.NewNop(), Options{
		Receipts: receipts,
		Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, serr)

	return &fixture{backend: backend, cart: c, transport: tr, receipts: receipts, submitter: s}
}

func (f *fixture) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, product.Product{
		ID: 1, Name: "Collar", Price: decimal.RequireFromString("8.50"), Stock: 10,
	}, 2))
	require.NoError(t, f.cart.Add(ctx, product.Product{
		ID: 5, Name: "Pelota", Price: decimal.RequireFromString("3"), Stock: 10,
	}, 1))
}

var testRequest = Request{
	Address:       "Av. Amazonas 123",
	PaymentMethod: "tarjeta",
	UserID:        7,
	AccountID:     11,
}

// --- Tests ---

func TestFinalize_EmptyCart(t *testing.T) {
	f := newFixture(t, &Response{StatusCode: 200, Body: []byte("true")}, nil)

	res := f.submitter.Finalize(context.Background(), testRequest)

	assert.Equal(t, OutcomeEmptyCart, res.Outcome)
	assert.Equal(t, MessageEmptyCart, res.Message)
	assert.Equal(t, 0, f.transport.calls)
}

func TestFinalize_Success(t *testing.T) {
	for _, body := range []string{`true`, `{"success":true}`, `{"success":true,"message":"ok","id":3}`} {
		t.Run(body, func(t *testing.T) {
			f := newFixture(t, &Response{StatusCode: 200, Body: []byte(body)}, nil)
			f.fill(t)

			res := f.submitter.Finalize(context.Background(), testRequest)

			require.True(t, res.OK(), res.Message)
			assert.Equal(t, MessageSuccess, res.Message)
			assert.Empty(t, f.cart.Items())

			var stored []cart.LineItem
			require.NoError(t, storage.GetJSON(context.Background(), f.backend, cartKey, &stored))
			assert.Empty(t, stored)

			require.NotNil(t, res.Receipt)
			assert.Equal(t, "20", res.Receipt.Subtotal.String())
			assert.Equal(t, "3", res.Receipt.Tax.String())
			assert.Equal(t, "23", res.Receipt.Total.String())
			assert.Len(t, res.Receipt.Lines, 2)

			saved, err := f.receipts.List(context.Background(), 7)
			require.NoError(t, err)
			require.Len(t, saved, 1)
			assert.Equal(t, res.Receipt.ID, saved[0].ID)
		})
	}
}

func TestFinalize_KeepsLinesAddedDuringSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &Response{StatusCode: 200, Body: []byte(`{"success":true}`)}, nil)
	f.fill(t)
	f.transport.during = func() {
		require.NoError(t, f.cart.Add(ctx, product.Product{
			ID: 9, Name: "Cepillo", Price: decimal.RequireFromString("4"), Stock: 3,
		}, 1))
		require.NoError(t, f.cart.Add(ctx, product.Product{
			ID: 1, Name: "Collar", Price: decimal.RequireFromString("8.50"), Stock: 10,
		}, 1))
	}

	res := f.submitter.Finalize(ctx, testRequest)

	require.True(t, res.OK(), res.Message)
	require.NotNil(t, res.Receipt)
	assert.Len(t, res.Receipt.Lines, 2)

	items := f.cart.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, int64(9), items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)

	var stored []cart.LineItem
	require.NoError(t, storage.GetJSON(ctx, f.backend, cartKey, &stored))
	require.Len(t, stored, 2)
	assert.Equal(t, 1, stored[0].Quantity)
	assert.Equal(t, int64(9), stored[1].ProductID)
}

func TestFinalize_Payload(t *testing.T) {
	f := newFixture(t, &Response{StatusCode: 200, Body: []byte("true")}, nil)
	f.fill(t)

	f.submitter.Finalize(context.Background(), testRequest)

	assert.JSONEq(t, `{
		"direccion": "Av. Amazonas 123",
		"metodoPago": "tarjeta",
		"usuarioId": 7,
		"cuentaId": 11,
		"productos": [{"id": 1, "cantidad": 2}, {"id": 5, "cantidad": 1}]
	}`, string(f.transport.last))
}

func TestFinalize_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "message", body: `{"success":false,"message":"X"}`, message: "X"},
		{name: "error field", body: `{"success":false,"error":"sin stock"}`, message: "sin stock"},
		{name: "default", body: `{"success":false}`, message: MessageRejected},
		{name: "false", body: `false`, message: MessageRejected},
		{name: "truthy string", body: `{"success":"true"}`, message: MessageRejected},
		{name: "malformed", body: `{"success":`, message: MessageRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &Response{StatusCode: 200, Body: []byte(tt.body)}, nil)
			f.fill(t)
			before := f.cart.Items()

			res := f.submitter.Finalize(context.Background(), testRequest)

			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.Equal(t, tt.message, res.Message)
			assert.Nil(t, res.Receipt)
			assert.Equal(t, before, f.cart.Items())
		})
	}
}

func TestFinalize_HTTPError(t *testing.T) {
	f := newFixture(t, &Response{StatusCode: 500, Body: []byte("boom")}, nil)
	f.fill(t)

	res := f.submitter.Finalize(context.Background(), testRequest)

	assert.Equal(t, OutcomeHTTPError, res.Outcome)
	assert.Equal(t, 500, res.StatusCode)
	assert.Equal(t, "boom", res.Body)
	assert.Len(t, f.cart.Items(), 2)
}

func TestFinalize_ConnectionError(t *testing.T) {
	f := newFixture(t, nil, errors.New("dial tcp: connection refused"))
	f.fill(t)

	res := f.submitter.Finalize(context.Background(), testRequest)

	assert.Equal(t, OutcomeConnectionError, res.Outcome)
	assert.Equal(t, MessageConnectionError, res.Message)
	assert.Len(t, f.cart.Items(), 2)
}

func TestEncodePayload_EmptyLines(t *testing.T) {
	got := EncodePayload(Payload{Address: "a", PaymentMethod: "b"})
	assert.JSONEq(t, `{"direccion":"a","metodoPago":"b","usuarioId":0,"cuentaId":0,"productos":[]}`, string(got))
}
