package sessionsvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func testStore(t *testing.T, store core.SessionStore) {
	ctx := context.Background()
	id := core.NewID()

	revoked, err := store.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, id, time.Hour))
	revoked, err = store.IsRevoked(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)

	other := core.NewID()
	require.NoError(t, store.Revoke(ctx, other, 0))
	revoked, err = store.IsRevoked(ctx, other)
	require.NoError(t, err)
	assert.False(t, revoked, "an expired session needs no revocation")
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Now().UTC()
	core.NowFunc = func() time.Time { return now }
	defer func() { core.NowFunc = func() time.Time { return time.Now().UTC() } }()

	store := NewMemoryStore()
	require.NoError(t, store.Revoke(context.Background(), "sid", time.Minute))

	now = now.Add(2 * time.Minute)
	revoked, err := store.IsRevoked(context.Background(), "sid")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	rdb, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	testStore(t, NewRedisStore(rdb))
}
