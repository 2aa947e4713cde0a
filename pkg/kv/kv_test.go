package kv

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type factory func(t *testing.T) Store

func engines() map[string]factory {
	return map[string]factory{
		"Memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"File": func(t *testing.T) Store {
			s, err := NewFile(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"Redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { rdb.Close() })
			return NewRedis(rdb, "test:")
		},
	}
}

func TestEngines(t *testing.T) {
	for name, f := range engines() {
		t.Run(name, func(t *testing.T) {
			t.Run("SetGet", func(t *testing.T) { testSetGet(t, f(t)) })
			t.Run("Delete", func(t *testing.T) { testDelete(t, f(t)) })
			t.Run("Keys", func(t *testing.T) { testKeys(t, f(t)) })
			t.Run("CopyOnRead", func(t *testing.T) { testCopyOnRead(t, f(t)) })
			t.Run("Concurrent", func(t *testing.T) { testConcurrent(t, f(t)) })
		})
	}
}

func testSetGet(t *testing.T, s Store) {
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "novels")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "novels", []byte(`[{"id":"n1"}]`)))
	v, ok, err := s.Get(ctx, "novels")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"n1"}]`, string(v))

	require.NoError(t, s.Set(ctx, "novels", []byte(`[]`)))
	v, _, err = s.Get(ctx, "novels")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(v))
}

func testDelete(t *testing.T, s Store) {
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting a missing key is fine
	require.NoError(t, s.Delete(ctx, "missing"))
}

func testKeys(t *testing.T, s Store) {
	defer s.Close()
	ctx := context.Background()

	for _, k := range []string{"novels", "chapters", "odd/key:with spaces"} {
		require.NoError(t, s.Set(ctx, k, []byte("x")))
	}
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"chapters", "novels", "odd/key:with spaces"}, keys)
}

func testCopyOnRead(t *testing.T, s Store) {
	defer s.Close()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'X'

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))

	v[1] = 'Y'
	again, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func testConcurrent(t *testing.T, s Store) {
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			assert.NoError(t, s.Set(ctx, key, []byte(key)))
		}(i)
	}
	wg.Wait()

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 20)
}

func TestFileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFile(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "settings", []byte(`{"storageType":"indexedDB"}`)))
	require.NoError(t, s.Close())

	reopened, err := NewFile(dir)
	require.NoError(t, err)
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, "settings")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"storageType":"indexedDB"}`, string(v))
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Close())
	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", nil), ErrClosed)
}

func TestRedisPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := NewRedis(rdb, "a:")
	b := NewRedis(rdb, "b:")
	require.NoError(t, a.Set(ctx, "novels", []byte("from a")))

	_, ok, err := b.Get(ctx, "novels")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"novels"}, keys)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := DialRedis(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "novelkit:"})
	require.NoError(t, err)
	require.NoError(t, r.Set(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("novelkit:k"))
	require.NoError(t, r.Close())
}
