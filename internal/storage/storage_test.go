package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	l, err := Open(ctx, path)
	require.NoError(t, err)

	var got map[string]int
	ok, err := l.Get(ctx, "cart-storage", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Set(ctx, "cart-storage", map[string]int{"totalItems": 1}))
	require.NoError(t, l.Set(ctx, "cart-storage", map[string]int{"totalItems": 3}))

	ok, err = l.Get(ctx, "cart-storage", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got["totalItems"])
	require.NoError(t, l.Close())

	l, err = Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got = nil
	ok, err = l.Get(ctx, "cart-storage", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got["totalItems"])

	require.NoError(t, l.Delete(ctx, "cart-storage"))
	ok, err = l.Get(ctx, "cart-storage", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
