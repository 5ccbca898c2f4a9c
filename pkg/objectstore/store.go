// Package objectstore persists opaque objects grouped into catalogs. It backs
// the Store effect: save is an upsert, list returns a whole catalog ordered by
// id, and delete succeeds whether or not the object existed.
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidName is returned for an empty catalog or id.
var ErrInvalidName = errors.New("objectstore: catalog and id must be non-empty")

// Item is one stored object.
type Item struct {
	ID   string
	Data []byte
}

// Store is the contract every backend implements.
type Store interface {
	// Save inserts or replaces the object id in catalog.
	Save(ctx context.Context, catalog, id string, data []byte) error
	// List returns every object in catalog ordered by id.
	List(ctx context.Context, catalog string) ([]Item, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, catalog, id string) error
}

func validate(catalog string, ids ...string) error {
	if catalog == "" {
		return ErrInvalidName
	}
	for _, id := range ids {
		if id == "" {
			return ErrInvalidName
		}
	}
	return nil
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// FileStore keeps one file per object under baseDir/<catalog>/. Catalog and
// id are base64url-encoded into path components so arbitrary strings are
// safe. Writes go to a temp file that is renamed into place.
//
// A name whose encoding would exceed maxComponent is stored under
// "~" + sha256 hex instead. "~" is outside the base64url alphabet, so the two
// forms never collide. Hashed item files begin with a 4-byte big-endian id
// length and the id itself, followed by the object bytes.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

var pathEnc = base64.RawURLEncoding

const (
	itemExt      = ".obj"
	hashedPrefix = "~"
	// maxComponent keeps component+itemExt+".tmp" within the common 255 byte
	// NAME_MAX.
	maxComponent = 200
)

// component returns the path component for name and whether it is hashed.
func component(name string) (string, bool) {
	if pathEnc.EncodedLen(len(name)) <= maxComponent {
		return pathEnc.EncodeToString([]byte(name)), false
	}
	sum := sha256.Sum256([]byte(name))
	return hashedPrefix + hex.EncodeToString(sum[:]), true
}

func NewFileStore(baseDir string) (*FileStore, error) {
	//nolint:gosec // G301: directory is private to the shell's data dir
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: ensure dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) catalogDir(catalog string) string {
	dir, _ := component(catalog)
	return filepath.Join(s.baseDir, dir)
}

func (s *FileStore) itemPath(catalog, id string) (string, bool) {
	name, hashed := component(id)
	return filepath.Join(s.catalogDir(catalog), name+itemExt), hashed
}

// readItem loads the object stored under file name. ok is false for files
// that are not objects or that disappeared.
func readItem(dir, name string) (item Item, ok bool, err error) {
	stem := strings.TrimSuffix(name, itemExt)
	hashed := strings.HasPrefix(stem, hashedPrefix)
	var id []byte
	if !hashed {
		if id, err = pathEnc.DecodeString(stem); err != nil {
			return Item{}, false, nil
		}
	}

	//nolint:gosec // G304: path built from the encoded catalog and id
	data, err := os.ReadFile(filepath.Join(dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, fmt.Errorf("objectstore: read item: %w", err)
	}
	if hashed {
		if len(data) < 4 || uint64(binary.BigEndian.Uint32(data)) > uint64(len(data)-4) {
			return Item{}, false, fmt.Errorf("objectstore: item %s: truncated id header", name)
		}
		n := binary.BigEndian.Uint32(data)
		id, data = data[4:4+n], data[4+n:]
	}
	return Item{ID: string(id), Data: data}, true, nil
}

func (s *FileStore) Save(_ context.Context, catalog, id string, data []byte) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // G301
	if err := os.MkdirAll(s.catalogDir(catalog), 0o755); err != nil {
		return fmt.Errorf("objectstore: ensure catalog: %w", err)
	}
	path, hashed := s.itemPath(catalog, id)
	if hashed {
		body := make([]byte, 4, 4+len(id)+len(data))
		binary.BigEndian.PutUint32(body, uint32(len(id)))
		body = append(body, id...)
		data = append(body, data...)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("objectstore: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("objectstore: commit: %w", err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context, catalog string) ([]Item, error) {
	if err := validate(catalog); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.catalogDir(catalog))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("objectstore: read catalog: %w", err)
	}

	dir := s.catalogDir(catalog)
	var items []Item
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, itemExt) {
			continue
		}
		item, ok, err := readItem(dir, name)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}
	sortItems(items)
	return items, nil
}

func (s *FileStore) Delete(_ context.Context, catalog, id string) error {
	if err := validate(catalog, id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path, _ := s.itemPath(catalog, id)
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("objectstore: delete: %w", err)
	}
	return nil
}
