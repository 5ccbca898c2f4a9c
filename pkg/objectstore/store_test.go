package objectstore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	items, err := s.List(ctx, "credential")
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.Save(ctx, "credential", "b", []byte("two")))
	require.NoError(t, s.Save(ctx, "credential", "a", []byte("one")))
	require.NoError(t, s.Save(ctx, "other", "a", []byte("elsewhere")))

	// Save is an upsert.
	require.NoError(t, s.Save(ctx, "credential", "b", []byte("two-v2")))

	items, err = s.List(ctx, "credential")
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "a", Data: []byte("one")}, {ID: "b", Data: []byte("two-v2")}}, items)

	require.NoError(t, s.Delete(ctx, "credential", "a"))
	// Deleting an id that was never saved reports success.
	require.NoError(t, s.Delete(ctx, "credential", "never-saved"))
	require.NoError(t, s.Delete(ctx, "credential", "a"))

	items, err = s.List(ctx, "credential")
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "b", Data: []byte("two-v2")}}, items)

	items, err = s.List(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.ErrorIs(t, s.Save(ctx, "", "x", nil), ErrInvalidName)
	assert.ErrorIs(t, s.Delete(ctx, "credential", ""), ErrInvalidName)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_ArbitraryNames(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	id := "did:web:issuer.example/../../etc/passwd"
	require.NoError(t, s.Save(ctx, "cred/../x", id, []byte("v")))
	items, err := s.List(ctx, "cred/../x")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
}

func TestFileStore_LongNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	catalog := strings.Repeat("c", 400)
	long := strings.Repeat("x", 1000)
	require.NoError(t, s.Save(ctx, catalog, long, []byte("v1")))
	require.NoError(t, s.Save(ctx, catalog, long, []byte("v2")))
	require.NoError(t, s.Save(ctx, catalog, "short", []byte("s")))

	items, err := s.List(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "short", Data: []byte("s")}, {ID: long, Data: []byte("v2")}}, items)

	err = filepath.WalkDir(dir, func(path string, _ fs.DirEntry, err error) error {
		require.NoError(t, err)
		assert.LessOrEqual(t, len(filepath.Base(path)), 255, path)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, catalog, long))
	items, err = s.List(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "short", Data: []byte("s")}}, items)
}

func TestFileStore_BoundaryNameLength(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// 150 bytes encode to exactly 200 characters; one more switches to the
	// hashed form.
	atLimit, overLimit := strings.Repeat("a", 150), strings.Repeat("a", 151)
	_, hashed := s.itemPath("c", atLimit)
	assert.False(t, hashed)
	_, hashed = s.itemPath("c", overLimit)
	assert.True(t, hashed)

	require.NoError(t, s.Save(ctx, "c", atLimit, []byte("1")))
	require.NoError(t, s.Save(ctx, "c", overLimit, []byte("2")))
	items, err := s.List(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: atLimit, Data: []byte("1")}, {ID: overLimit, Data: []byte("2")}}, items)
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLiteStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, openSQLite(t))
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPostgresStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO objects (catalog, id, data, updated_at) VALUES ($1, $2, $3, $4)")).
		WithArgs("credential", "c1", []byte("data"), fixed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, s.Save(context.Background(), "credential", "c1", []byte("data")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("a", []byte("1")).
		AddRow("b", []byte("2"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data FROM objects WHERE catalog = $1")).
		WithArgs("credential").
		WillReturnRows(rows)

	items, err := s.List(context.Background(), "credential")
	require.NoError(t, err)
	assert.Equal(t, []Item{{ID: "a", Data: []byte("1")}, {ID: "b", Data: []byte("2")}}, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteMissingIsSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM objects WHERE catalog = $1 AND id = $2")).
		WithArgs("credential", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.Delete(context.Background(), "credential", "missing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BackendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM objects")).
		WillReturnError(errors.New("connection reset"))

	err = s.Delete(context.Background(), "credential", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresStore_Migrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS objects")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.NoError(t, NewPostgresStore(db).Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestS3Store(t *testing.T) {
	exerciseStore(t, NewS3StoreWithClient(newFakeS3(), "wallet", "shell/"))
}

func TestS3Store_KeyLayout(t *testing.T) {
	fake := newFakeS3()
	s := NewS3StoreWithClient(fake, "wallet", "shell/")
	require.NoError(t, s.Save(context.Background(), "credential", "a/b c", []byte("x")))

	_, ok := fake.objects["shell/credential/a%2Fb%20c"]
	assert.True(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, closeFn, err := Open(ctx, Config{Path: filepath.Join(dir, "db", "objects.db")})
	require.NoError(t, err)
	_, ok := s.(*SQLStore)
	assert.True(t, ok)
	require.NoError(t, closeFn())

	s, closeFn, err = Open(ctx, Config{Type: TypeFS, Path: filepath.Join(dir, "fs")})
	require.NoError(t, err)
	_, ok = s.(*FileStore)
	assert.True(t, ok)
	require.NoError(t, closeFn())

	_, _, err = Open(ctx, Config{Type: TypePostgres})
	assert.ErrorContains(t, err, "dsn is required")

	_, _, err = Open(ctx, Config{Type: TypeS3})
	assert.ErrorContains(t, err, "bucket is required")

	_, _, err = Open(ctx, Config{Type: "tape"})
	assert.ErrorContains(t, err, "unsupported type")
}
