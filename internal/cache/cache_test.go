package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "todoapi:"), mr
}

func TestTodosKey(t *testing.T) {
	assert.Equal(t, "todos_user_42", TodosKey(42))
}

func TestUntilNextDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"正午", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), 12 * time.Hour},
		{"日付直前", time.Date(2024, 1, 1, 23, 59, 59, 500, time.UTC), time.Second},
		{"月末", time.Date(2024, 1, 31, 18, 30, 0, 0, time.UTC), 5*time.Hour + 30*time.Minute},
		{"タイムゾーン", time.Date(2024, 1, 1, 21, 0, 0, 0, tokyo), 3 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UntilNextDay(tt.now))
		})
	}
}

func TestRedisStore_SetGetDelete(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TodosKey(1), []byte(`[{"id":1}]`), time.Hour))
	assert.True(t, mr.Exists("todoapi:todos_user_1"))
	assert.Equal(t, time.Hour, mr.TTL("todoapi:todos_user_1"))

	val, found, err := store.Get(ctx, TodosKey(1))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `[{"id":1}]`, string(val))

	require.NoError(t, store.Delete(ctx, TodosKey(1)))
	_, found, err = store.Get(ctx, TodosKey(1))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_DeleteMissingKeyIsNoop(t *testing.T) {
	store, _ := newRedisStore(t)
	assert.NoError(t, store.Delete(context.Background(), TodosKey(999)))
}

func TestRedisStore_ExpiresAfterTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_GetErrorPropagates(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client, "")
	mr.Close()

	_, _, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	val, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(val))

	now = now.Add(time.Minute)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))

	_, found, _ := store.Get(ctx, "k")
	assert.False(t, found)
}
