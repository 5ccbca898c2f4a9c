package kv

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T, pageSize int) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db, pageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T, pageSize int) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(pageSize),
		"sqlite": newSQLite(t, pageSize),
	}
}

func listAll(t *testing.T, s Store, prefix string) []string {
	t.Helper()
	ctx := context.Background()
	var all []string
	cursor := uint64(0)
	for i := 0; ; i++ {
		require.Less(t, i, 10000, "enumeration did not terminate")
		keys, next, err := s.ListKeys(ctx, prefix, cursor)
		require.NoError(t, err)
		all = append(all, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(all)
	return all
}

func TestStore_Conformance(t *testing.T) {
	for name, s := range backends(t, 3) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			prev, had, err := s.Set(ctx, "a", []byte("1"))
			require.NoError(t, err)
			assert.False(t, had)
			assert.Nil(t, prev)

			prev, had, err = s.Set(ctx, "a", []byte("2"))
			require.NoError(t, err)
			assert.True(t, had)
			assert.Equal(t, []byte("1"), prev)

			v, ok, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("2"), v)

			_, _, err = s.Set(ctx, "empty", nil)
			require.NoError(t, err)
			v, ok, err = s.Get(ctx, "empty")
			require.NoError(t, err)
			assert.True(t, ok, "an empty value is still present")
			assert.Empty(t, v)

			exists, err := s.Exists(ctx, "a")
			require.NoError(t, err)
			assert.True(t, exists)

			prev, had, err = s.Delete(ctx, "a")
			require.NoError(t, err)
			assert.True(t, had)
			assert.Equal(t, []byte("2"), prev)

			_, had, err = s.Delete(ctx, "a")
			require.NoError(t, err)
			assert.False(t, had)

			exists, err = s.Exists(ctx, "a")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStore_ListKeysPrefixAndPaging(t *testing.T) {
	for name, s := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var want []string
			for i := 0; i < 11; i++ {
				k := fmt.Sprintf("user:%02d", i)
				want = append(want, k)
				_, _, err := s.Set(ctx, k, []byte{byte(i)})
				require.NoError(t, err)
			}
			_, _, err := s.Set(ctx, "other:1", nil)
			require.NoError(t, err)

			assert.Equal(t, want, listAll(t, s, "user:"))
			assert.Len(t, listAll(t, s, ""), 12)
			assert.Empty(t, listAll(t, s, "nobody"))

			keys, next, err := s.ListKeys(ctx, "user:", 0)
			require.NoError(t, err)
			assert.Len(t, keys, 4)
			assert.NotZero(t, next)
		})
	}
}

func TestStore_ListKeysEmptyStore(t *testing.T) {
	for name, s := range backends(t, 4) {
		t.Run(name, func(t *testing.T) {
			keys, next, err := s.ListKeys(context.Background(), "", 0)
			require.NoError(t, err)
			assert.Empty(t, keys)
			assert.Zero(t, next)
		})
	}
}

func TestStore_ListKeysUnderMutation(t *testing.T) {
	for name, s := range backends(t, 5) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 40; i++ {
				_, _, err := s.Set(ctx, fmt.Sprintf("k%03d", i), []byte("v"))
				require.NoError(t, err)
			}

			seen := map[string]bool{}
			cursor := uint64(0)
			added := 0
			for page := 0; ; page++ {
				require.Less(t, page, 100, "enumeration did not terminate")
				keys, next, err := s.ListKeys(ctx, "", cursor)
				require.NoError(t, err)
				for _, k := range keys {
					seen[k] = true
				}
				// Keep growing the namespace and churn the first keys.
				for j := 0; j < 5; j++ {
					_, _, err := s.Set(ctx, fmt.Sprintf("new%03d", added), []byte("v"))
					require.NoError(t, err)
					added++
				}
				_, _, err = s.Delete(ctx, fmt.Sprintf("k%03d", page))
				require.NoError(t, err)
				_, _, err = s.Set(ctx, fmt.Sprintf("k%03d", 39-page), []byte("overwritten"))
				require.NoError(t, err)
				if next == 0 {
					break
				}
				cursor = next
			}

			// Keys never deleted were present throughout and must be seen.
			for i := 10; i < 40; i++ {
				assert.True(t, seen[fmt.Sprintf("k%03d", i)], "k%03d", i)
			}
		})
	}
}

func TestStore_InvalidCursor(t *testing.T) {
	for name, s := range backends(t, 2) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, _, err := s.Set(ctx, "a", nil)
			require.NoError(t, err)

			_, _, err = s.ListKeys(ctx, "", packCursor(99, 1))
			assert.ErrorIs(t, err, ErrCursorNotFound)

			_, _, err = s.ListKeys(ctx, "", 7)
			assert.ErrorIs(t, err, ErrCursorNotFound, "zero high-water mark")

			_, _, err = s.ListKeys(ctx, "", packCursor(1, 2))
			assert.ErrorIs(t, err, ErrCursorNotFound, "position past high-water mark")
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	buf := []byte("abc")
	_, _, err := s.Set(ctx, "k", buf)
	require.NoError(t, err)
	buf[0] = 'x'

	v, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)
	v[1] = 'y'

	v, _, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `ns:a\*b\?\[c\]\\`, escapeGlob(`ns:a*b?[c]\`))
	assert.Equal(t, "plain", escapeGlob("plain"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closeFn())

	s, closeFn, err = Open(ctx, Config{Type: TypeSQLite, Path: filepath.Join(t.TempDir(), "sub", "kv.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	assert.NoError(t, closeFn())

	_, _, err = Open(ctx, Config{Type: "etcd"})
	assert.ErrorContains(t, err, "unknown store type")
}
