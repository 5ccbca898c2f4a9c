package objectstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name    string
	migrate string
	save    string
	list    string
	delete  string
}

var sqliteDialect = dialect{
	name: "sqlite",
	migrate: `
	CREATE TABLE IF NOT EXISTS objects (
		catalog TEXT NOT NULL,
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (catalog, id)
	);`,
	save: `INSERT INTO objects (catalog, id, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (catalog, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
	list:   `SELECT id, data FROM objects WHERE catalog = ? ORDER BY id`,
	delete: `DELETE FROM objects WHERE catalog = ? AND id = ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	migrate: `
	CREATE TABLE IF NOT EXISTS objects (
		catalog TEXT NOT NULL,
		id TEXT NOT NULL,
		data BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (catalog, id)
	);`,
	save: `INSERT INTO objects (catalog, id, data, updated_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (catalog, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	list:   `SELECT id, data FROM objects WHERE catalog = $1 ORDER BY id COLLATE "C"`,
	delete: `DELETE FROM objects WHERE catalog = $1 AND id = $2`,
}

// SQLStore keeps objects in a single "objects" table.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// NewSQLiteStore wraps a database opened with the "sqlite" driver.
func NewSQLiteStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: sqliteDialect, now: time.Now}
}

// NewPostgresStore wraps a database opened with the "postgres" driver.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: postgresDialect, now: time.Now}
}

// Migrate creates the objects table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.migrate); err != nil {
		return fmt.Errorf("objectstore: %s migrate: %w", s.dialect.name, err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, catalog, id string, data []byte) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.save, catalog, id, data, s.now().UTC()); err != nil {
		return fmt.Errorf("objectstore: save %s/%s: %w", catalog, id, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, catalog string) ([]Item, error) {
	if err := validate(catalog); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.list, catalog)
	if err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", catalog, err)
	}
	defer func() { _ = rows.Close() }()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Data); err != nil {
			return nil, fmt.Errorf("objectstore: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("objectstore: list %s: %w", catalog, err)
	}
	return items, nil
}

func (s *SQLStore) Delete(ctx context.Context, catalog, id string) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.delete, catalog, id); err != nil {
		return fmt.Errorf("objectstore: delete %s/%s: %w", catalog, id, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
