package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), a .env file or YAML config
// files.
type Config struct {
	Addr         string `default:"127.0.0.1:8090" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths"`
	API          APIConfig
	Poll         PollConfig
	Tax          TaxConfig
	Storage      StorageConfig
	Keys         KeysConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// APIConfig locates the remote commerce API.
type APIConfig struct {
	BaseURL      string        `default:"https://backendpawstails.runasp.net/api/gestion" usage:"Commerce API base URL"`
	ProductsPath string        `default:"/productos" usage:"Product list path"`
	PurchasePath string        `default:"/compra" usage:"Purchase path"`
	Timeout      time.Duration `default:"10s" usage:"HTTP client timeout"`
}

// PollConfig controls the stock poller.
type PollConfig struct {
	Enabled      bool          `default:"true" usage:"Poll stock in the background while serving"`
	Interval     time.Duration `default:"10s" usage:"Delay between stock polls"`
	Timeout      time.Duration `default:"8s" usage:"Timeout of a single poll"`
	BackoffAfter int           `default:"3" usage:"Consecutive failures before backing off"`
	MaxBackoff   time.Duration `default:"2m" usage:"Maximum delay while backing off"`
}

// TaxConfig holds the sales tax rate.
type TaxConfig struct {
	Rate string `default:"0.15" usage:"Sales tax rate applied to the cart subtotal"`
}

// StorageConfig selects the durable and session-scoped stores.
type StorageConfig struct {
	Durable DurableStorageConfig
	Session SessionStorageConfig
}

// DurableStorageConfig holds cart, account and receipt snapshots.
type DurableStorageConfig struct {
	Driver      string `default:"sqlite" usage:"sqlite, postgres or memory"`
	Path        string `default:"storefront.db" usage:"SQLite database file"`
	DatabaseURL string `default:"" usage:"PostgreSQL connection URL (or DATABASE_URL)"`
}

// SessionStorageConfig holds the catalog cache.
type SessionStorageConfig struct {
	Driver string        `default:"memory" usage:"memory or redis"`
	URL    string        `default:"redis://127.0.0.1:6379/0" usage:"Redis URL"`
	Prefix string        `default:"storefront" usage:"Redis key prefix"`
	TTL    time.Duration `default:"30m" usage:"Lifetime of session-scoped values"`
}

// KeysConfig names the storage keys.
type KeysConfig struct {
	Cart     string `default:"carrito"`
	Catalog  string `default:"productosPrecargados"`
	Account  string `default:"cuenta"`
	User     string `default:"usuario"`
	Receipts string `default:"facturas"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s" usage:"Delay after readiness=false before shutdown"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration"`
}

// TaxRate parses the configured tax rate.
func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Tax.Rate)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse tax rate %q", c.Tax.Rate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("tax rate %s must be in [0, 1)", rate)
	}
	return rate, nil
}

// LoadConfig loads configuration from an optional .env file, environment
// variables and YAML config files. An explicit file path takes precedence
// over the default locations.
func LoadConfig(file string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	files := []string{"storefront.yaml", "/etc/storefront/storefront.yaml"}
	if file != "" {
		files = []string{file}
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:          true,
		EnvPrefix:          "STOREFRONT",
		AllowUnknownFields: true,
		FailOnFileNotFound: file != "",
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL and PORT
// variables to the STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.Durable.DatabaseURL == "" {
		c.Storage.Durable.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:8090" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch c.Storage.Durable.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.Durable.DatabaseURL == "" {
			return errors.New("database URL is required for postgres storage: set STOREFRONT_STORAGE_DURABLE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown durable storage driver %q", c.Storage.Durable.Driver)
	}
	switch c.Storage.Session.Driver {
	case DriverMemory, DriverRedis:
	default:
		return errors.Errorf("unknown session storage driver %q", c.Storage.Session.Driver)
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	_, err := c.TaxRate()
	return err
}
