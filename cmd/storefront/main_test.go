package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pawstails-storefront/internal/commerce/commercetest"
	"github.com/xenking/pawstails-storefront/internal/domain/product"
)

// --- Helpers ---

func setupEnv(t *testing.T) *commercetest.Fake {
	t.Helper()
	fake := commercetest.NewFake([]product.Product{
		{ID: 1, Name: "Croquetas", Price: decimal.RequireFromString("12.99"), Stock: 4, Category: "Alimento"},
		{ID: 2, Name: "Pelota", Price: decimal.RequireFromString("3.5"), Stock: 9, Category: "Juguetes"},
	})
	srv := httptest.NewServer(http.StripPrefix("/api/gestion", fake.Handler()))
	t.Cleanup(srv.Close)

	t.Setenv("STOREFRONT_API_BASE_URL", srv.URL+"/api/gestion")
	t.Setenv("STOREFRONT_STORAGE_DURABLE_DRIVER", "sqlite")
	t.Setenv("STOREFRONT_STORAGE_DURABLE_PATH", filepath.Join(t.TempDir(), "storefront.db"))
	// The catalog cache must outlive a single invocation.
	mr := miniredis.RunT(t)
	t.Setenv("STOREFRONT_STORAGE_SESSION_DRIVER", "redis")
	t.Setenv("STOREFRONT_STORAGE_SESSION_URL", "redis://"+mr.Addr())
	return fake
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// --- Tests ---

func TestProductsAndCategories(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "products", "--category", "Juguetes")
	require.NoError(t, err)
	assert.Contains(t, out, "Pelota")
	assert.NotContains(t, out, "Croquetas")

	out, err = execute(t, "categories")
	require.NoError(t, err)
	assert.Equal(t, "all\nAlimento\nJuguetes\n", out)
}

func TestCartPersistsAcrossInvocations(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "cart", "add", "1", "2")
	require.NoError(t, err)
	_, err = execute(t, "cart", "add", "2", "3")
	require.NoError(t, err)

	out, err := execute(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Subtotal: 36.48")
	assert.Contains(t, out, "Tax (15%): 5.47")
	assert.Contains(t, out, "Total:    41.95")

	_, err = execute(t, "cart", "add", "1", "5")
	assert.Error(t, err)

	_, err = execute(t, "cart", "set", "1", "abc")
	require.NoError(t, err)
	out, err = execute(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Units:    4")

	_, err = execute(t, "cart", "clear")
	require.NoError(t, err)
	out, err = execute(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")
}

func TestCheckoutFlow(t *testing.T) {
	fake := setupEnv(t)

	_, err := execute(t, "cart", "add", "1", "2")
	require.NoError(t, err)

	_, err = execute(t, "checkout", "--address", "Av. Siempre Viva 742", "--payment", "Tarjeta")
	require.Error(t, err, "checkout requires a signed-in account")

	_, err = execute(t, "login", "--user-id", "7", "--account-id", "3", "--name", "Ana")
	require.NoError(t, err)

	out, err := execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana (7)")

	out, err = execute(t, "checkout", "--address", "Av. Siempre Viva 742", "--payment", "Tarjeta")
	require.NoError(t, err)
	assert.Contains(t, out, "Receipt")
	require.Len(t, fake.Purchases(), 1)

	out, err = execute(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")

	out, err = execute(t, "receipts")
	require.NoError(t, err)
	assert.Contains(t, out, "29.88")

	_, err = execute(t, "logout")
	require.NoError(t, err)
	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")
}

func TestSync(t *testing.T) {
	fake := setupEnv(t)

	_, err := execute(t, "cart", "add", "2", "1")
	require.NoError(t, err)

	fake.SetStock(2, 1)
	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "9 -> 1")
	assert.Contains(t, out, "1 cart line(s) updated")
}

func TestInvalidLogLevel(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "--log-level", "loud", "categories")
	assert.Error(t, err)
}
