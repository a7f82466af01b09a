package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventflow/internal/model"
)

// Requires Redis; set REDIS_ADDR or run one on localhost:6379.
func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	prefix := "eventflow-test:" + t.Name() + ":"
	store, err := NewRedisStore(ctx, addr, prefix)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		store.client.Del(context.Background(), store.key(EventsKey))
		_ = store.Close()
	})
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, EventsKey)
	require.NoError(t, err)
	assert.False(t, ok)

	repo := NewEventRepository(store)
	require.NoError(t, repo.Save(ctx, []model.Event{{ID: "r1", Title: "Redis", Time: "09:00 AM", Status: model.StatusUpcoming}}))

	events, ok, err := repo.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.EventID("r1"), events[0].ID)
}

func TestRedisStoreConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := NewRedisStore(ctx, "127.0.0.1:1", "x:")
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "connect", perr.Op)
}
