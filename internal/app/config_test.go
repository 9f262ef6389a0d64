package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Helpers ---

// chdir runs the test from an empty directory so no storefront.yaml or .env
// from the working tree is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// --- Tests ---

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8090", cfg.Addr)
	assert.Equal(t, "/productos", cfg.API.ProductsPath)
	assert.Equal(t, "/compra", cfg.API.PurchasePath)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 3, cfg.Poll.BackoffAfter)
	assert.Equal(t, DriverSQLite, cfg.Storage.Durable.Driver)
	assert.Equal(t, DriverMemory, cfg.Storage.Session.Driver)
	assert.Equal(t, "carrito", cfg.Keys.Cart)
	assert.Equal(t, "productosPrecargados", cfg.Keys.Catalog)

	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.15").Equal(rate))
}

func TestLoadConfig_Env(t *testing.T) {
	chdir(t)
	t.Setenv("STOREFRONT_API_BASE_URL", "http://127.0.0.1:8091/api/gestion")
	t.Setenv("STOREFRONT_POLL_INTERVAL", "30s")
	t.Setenv("STOREFRONT_TAX_RATE", "0.12")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8091/api/gestion", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)

	rate, err := cfg.TaxRate()
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.12").Equal(rate))
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	chdir(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/shop")
	t.Setenv("STOREFRONT_STORAGE_DURABLE_DRIVER", "postgres")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, "postgres://u:p@db:5432/shop", cfg.Storage.Durable.DatabaseURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STOREFRONT_STORAGE_DURABLE_DRIVER": "postgres"}},
		{"unknown durable driver", map[string]string{"STOREFRONT_STORAGE_DURABLE_DRIVER": "bolt"}},
		{"unknown session driver", map[string]string{"STOREFRONT_STORAGE_SESSION_DRIVER": "memcached"}},
		{"tax rate out of range", map[string]string{"STOREFRONT_TAX_RATE": "1.5"}},
		{"tax rate not a number", map[string]string{"STOREFRONT_TAX_RATE": "fifteen"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	dir := chdir(t)
	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(ctx, StorageConfig{
		Durable: DurableStorageConfig{Driver: DriverMemory},
		Session: SessionStorageConfig{Driver: DriverMemory},
	}, KeysConfig{Receipts: "facturas"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	require.NoError(t, stores.Durable.Ping(ctx))
	require.NoError(t, stores.Session.Ping(ctx))
	require.NotNil(t, stores.Receipts)
}

func TestOpenStores_SQLite(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(ctx, StorageConfig{
		Durable: DurableStorageConfig{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "s.db")},
		Session: SessionStorageConfig{Driver: DriverMemory},
	}, KeysConfig{Receipts: "facturas"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, stores.Durable.Set(ctx, "k", []byte(`1`)))
	require.NoError(t, stores.Close())
	assert.NoError(t, stores.Close(), "second close is a no-op")
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), StorageConfig{
		Durable: DurableStorageConfig{Driver: "bolt"},
		Session: SessionStorageConfig{Driver: DriverMemory},
	}, KeysConfig{}, zap.NewNop())
	assert.Error(t, err)
}
