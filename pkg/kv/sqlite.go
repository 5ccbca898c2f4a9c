package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps keys in a table whose AUTOINCREMENT rowid is the
// insertion sequence. Overwrites update in place and keep the rowid.
type SQLiteStore struct {
	db       *sql.DB
	pageSize int
}

// NewSQLiteStore wraps db and creates the kv table if needed. db should be
// limited to one open connection; writes read the previous value and replace
// it inside one transaction.
func NewSQLiteStore(db *sql.DB, pageSize int) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, pageSize: pageSize}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL UNIQUE,
		value BLOB NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("kv: sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.get(ctx, s.db, key)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, q querier, key string) ([]byte, bool, error) {
	var v []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if value == nil {
		value = []byte{}
	}
	var prev []byte
	var had bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if prev, had, err = s.get(ctx, tx, key); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			key, value)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv: set %q: %w", key, err)
	}
	return prev, had, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) ([]byte, bool, error) {
	var prev []byte
	var had bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if prev, had, err = s.get(ctx, tx, key); err != nil || !had {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return prev, had, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kv WHERE key = ?`, key).Scan(&n); err != nil {
		return false, fmt.Errorf("kv: exists %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListKeys(ctx context.Context, prefix string, cursor uint64) ([]string, uint64, error) {
	var issued, current uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'kv'), 0),
			COALESCE((SELECT MAX(seq) FROM kv), 0)`).Scan(&issued, &current)
	if err != nil {
		return nil, 0, fmt.Errorf("kv: list keys: %w", err)
	}
	hwm, pos, err := resolveCursor(cursor, issued, current)
	if err != nil {
		return nil, 0, err
	}

	size := pageSize(s.pageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, key FROM kv
		WHERE seq > ? AND seq <= ? AND substr(key, 1, ?) = ?
		ORDER BY seq
		LIMIT ?`,
		pos, hwm, utf8.RuneCountInString(prefix), prefix, size+1)
	if err != nil {
		return nil, 0, fmt.Errorf("kv: list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	var seqs []uint64
	for rows.Next() {
		var seq uint64
		var key string
		if err := rows.Scan(&seq, &key); err != nil {
			return nil, 0, fmt.Errorf("kv: list keys: %w", err)
		}
		keys = append(keys, key)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("kv: list keys: %w", err)
	}

	if len(keys) <= size {
		return keys, 0, nil
	}
	return keys[:size], packCursor(hwm, seqs[size-1]), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
