package receipt

import (
	"context"
	"sort"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/pawstails-storefront/internal/storage"
)

var _ Repository = (*KVRepository)(nil)

// KVRepository stores all receipts as one JSON list under a single key.
type KVRepository struct {
	mu    sync.Mutex
	store storage.Store
	key   string
}

// NewKVRepository returns a KVRepository writing to key in store.
func NewKVRepository(store storage.Store, key string) *KVRepository {
	return &KVRepository{store: store, key: key}
}

func (r *KVRepository) Save(ctx context.Context, rec *Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	all = append(all, *rec)
	if err := storage.SetJSON(ctx, r.store, r.key, all); err != nil {
		return errors.Wrap(err, "save receipts")
	}
	return nil
}

func (r *KVRepository) List(ctx context.Context, userID int64) ([]Receipt, error) {
	r.mu.Lock()
	all, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Receipt, 0, len(all))
	for _, rec := range all {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *KVRepository) load(ctx context.Context) ([]Receipt, error) {
	var all []Receipt
	err := storage.GetJSON(ctx, r.store, r.key, &all)
	switch {
	case err == nil:
		return all, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	default:
		return nil, errors.Wrap(err, "load receipts")
	}
}
