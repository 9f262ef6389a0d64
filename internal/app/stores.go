package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
	"github.com/xenking/pawstails-storefront/internal/storage"
	"github.com/xenking/pawstails-storefront/internal/storage/memory"
	"github.com/xenking/pawstails-storefront/internal/storage/postgres"
	"github.com/xenking/pawstails-storefront/internal/storage/redis"
	"github.com/xenking/pawstails-storefront/internal/storage/sqlite"
)

// Stores are the opened storage backends of a session.
type Stores struct {
	// Durable keeps the cart, the account and receipts across restarts.
	Durable storage.Store
	// Session keeps the catalog cache for the lifetime of a shopping session.
	Session  storage.Store
	Receipts receipt.Repository

	closers []func() error
}

// OpenStores opens the backends selected by cfg.
func OpenStores(ctx context.Context, cfg StorageConfig, keys KeysConfig, lg *zap.Logger) (_ *Stores, rerr error) {
	s := &Stores{}
	defer func() {
		if rerr != nil {
			_ = s.Close()
		}
	}()

	switch cfg.Durable.Driver {
	case DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Durable.Path)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite")
		}
		s.closers = append(s.closers, db.Close)
		s.Durable = db
		s.Receipts = receipt.NewKVRepository(db, keys.Receipts)
	case DriverPostgres:
		pool, err := openPostgres(ctx, cfg.Durable.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })
		s.Durable = postgres.NewKVStore(pool)
		s.Receipts = postgres.NewReceiptRepository(pool)
	case DriverMemory:
		mem := memory.New()
		s.Durable = mem
		s.Receipts = receipt.NewKVRepository(mem, keys.Receipts)
	default:
		return nil, errors.Errorf("unknown durable storage driver %q", cfg.Durable.Driver)
	}

	switch cfg.Session.Driver {
	case DriverRedis:
		rdb, err := redis.Open(ctx, cfg.Session.URL, cfg.Session.Prefix, cfg.Session.TTL)
		if err != nil {
			return nil, errors.Wrap(err, "open redis")
		}
		s.closers = append(s.closers, rdb.Close)
		s.Session = rdb
	case DriverMemory:
		s.Session = memory.New()
	default:
		return nil, errors.Errorf("unknown session storage driver %q", cfg.Session.Driver)
	}

	lg.Info("Storage opened",
		zap.String("durable", cfg.Durable.Driver),
		zap.String("session", cfg.Session.Driver),
	)
	return s, nil
}

func openPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return pool, nil
}

// Close releases the backends in reverse order of opening. The first error
// is returned.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
