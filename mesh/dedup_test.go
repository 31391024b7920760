package mesh

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryDedupStoreDetectsDuplicates(t *testing.T) {
	store := NewMemoryDedupStore()
	ctx := context.Background()

	dup, err := store.MarkSeen(ctx, "hash-a")
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = store.MarkSeen(ctx, "hash-a")
	require.NoError(t, err)
	require.True(t, dup)

	dup, err = store.MarkSeen(ctx, "hash-b")
	require.NoError(t, err)
	require.False(t, dup)
}

func TestRedisDedupStoreDetectsDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisDedupStore(client, "test:", 0)
	ctx := context.Background()

	dup, err := store.MarkSeen(ctx, "hash-a")
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = store.MarkSeen(ctx, "hash-a")
	require.NoError(t, err)
	require.True(t, dup)
}
