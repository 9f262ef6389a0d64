package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pawstails-storefront/internal/storage"
	"github.com/xenking/pawstails-storefront/internal/storage/memory"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, storage.SetJSON(ctx, s, "k", sample{Name: "a", Count: 2}))

	var got sample
	require.NoError(t, storage.GetJSON(ctx, s, "k", &got))
	assert.Equal(t, sample{Name: "a", Count: 2}, got)
}

func TestGetJSON_Missing(t *testing.T) {
	var got sample
	err := storage.GetJSON(context.Background(), memory.New(), "missing", &got)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetJSON_Corrupt(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Set(ctx, "k", []byte("{not json")))

	var got sample
	err := storage.GetJSON(ctx, s, "k", &got)

	var decErr *storage.DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "k", decErr.Key)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestMemory_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
