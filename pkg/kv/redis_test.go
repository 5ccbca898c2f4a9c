package kv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRedisStore_Integration requires a running Redis on localhost.
func TestRedisStore_Integration(t *testing.T) {
	ns := fmt.Sprintf("effectshell:test:%d:", time.Now().UnixNano())
	s := NewRedisStore("localhost:6379", "", 0, ns, 3)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skip("Skipping Redis integration test: redis not available")
	}
	t.Cleanup(func() {
		for _, k := range listAll(t, s, "") {
			_, _, _ = s.Delete(context.Background(), k)
		}
	})

	prev, had, err := s.Set(ctx, "a", []byte("1"))
	require.NoError(t, err)
	assert.False(t, had)
	assert.Nil(t, prev)

	prev, had, err = s.Set(ctx, "a", []byte("2"))
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, []byte("1"), prev)

	for i := 0; i < 7; i++ {
		_, _, err := s.Set(ctx, fmt.Sprintf("p*%d", i), nil)
		require.NoError(t, err)
	}
	assert.Len(t, listAll(t, s, "p*"), 7)
	assert.Len(t, listAll(t, s, ""), 8)

	prev, had, err = s.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, had)
	assert.Equal(t, []byte("2"), prev)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
