// Package keystore keeps secrets addressed by (purpose, id). Entries are
// sealed with XChaCha20-Poly1305 under a key derived from a master secret
// and persisted in an objectstore catalog per purpose.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/effectshell/pkg/objectstore"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MaxSecretLength bounds GenerateSecret.
const MaxSecretLength = 4096

// MinMasterKeyLength is the shortest master secret New accepts.
const MinMasterKeyLength = 32

const (
	catalogPrefix = "keystore."
	hkdfInfo      = "effectshell keystore v1"
)

var (
	// ErrInvalidRequest marks failures caused by the caller's arguments.
	ErrInvalidRequest = errors.New("keystore: invalid request")
	// ErrCorrupt is returned when a stored entry cannot be opened.
	ErrCorrupt = errors.New("keystore: entry cannot be opened")
)

// Sealed is a keystore over an objectstore.Store.
type Sealed struct {
	objects objectstore.Store
	aead    aeadCipher
	rand    io.Reader
}

type aeadCipher interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// New derives the sealing key from master with HKDF-SHA256.
func New(objects objectstore.Store, master []byte) (*Sealed, error) {
	if len(master) < MinMasterKeyLength {
		return nil, fmt.Errorf("keystore: master key must be at least %d bytes", MinMasterKeyLength)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("keystore: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: cipher: %w", err)
	}
	return &Sealed{objects: objects, aead: aead, rand: rand.Reader}, nil
}

func checkSlot(purpose, id string) error {
	if purpose == "" || id == "" {
		return fmt.Errorf("%w: purpose and id must be non-empty", ErrInvalidRequest)
	}
	return nil
}

// additional data binds a sealed entry to its slot so entries cannot be
// swapped between ids or purposes.
func slotAD(purpose, id string) []byte {
	return []byte(purpose + "\x00" + id)
}

// Get returns the secret stored for (purpose, id).
func (s *Sealed) Get(ctx context.Context, purpose, id string) ([]byte, bool, error) {
	if err := checkSlot(purpose, id); err != nil {
		return nil, false, err
	}
	items, err := s.objects.List(ctx, catalogPrefix+purpose)
	if err != nil {
		return nil, false, fmt.Errorf("keystore: get: %w", err)
	}
	for _, it := range items {
		if it.ID != id {
			continue
		}
		plain, err := s.open(it.Data, slotAD(purpose, id))
		if err != nil {
			return nil, false, err
		}
		return plain, true, nil
	}
	return nil, false, nil
}

func (s *Sealed) Set(ctx context.Context, purpose, id string, secret []byte) error {
	if err := checkSlot(purpose, id); err != nil {
		return err
	}
	sealed, err := s.seal(secret, slotAD(purpose, id))
	if err != nil {
		return err
	}
	if err := s.objects.Save(ctx, catalogPrefix+purpose, id, sealed); err != nil {
		return fmt.Errorf("keystore: set: %w", err)
	}
	return nil
}

// Delete removes the entry. A missing entry is not an error.
func (s *Sealed) Delete(ctx context.Context, purpose, id string) error {
	if err := checkSlot(purpose, id); err != nil {
		return err
	}
	if err := s.objects.Delete(ctx, catalogPrefix+purpose, id); err != nil {
		return fmt.Errorf("keystore: delete: %w", err)
	}
	return nil
}

// GenerateSecret returns n bytes from the system CSPRNG.
func (s *Sealed) GenerateSecret(n uint64) ([]byte, error) {
	return GenerateSecret(s.rand, n)
}

func GenerateSecret(r io.Reader, n uint64) ([]byte, error) {
	if n > MaxSecretLength {
		return nil, fmt.Errorf("%w: secret length %d exceeds %d", ErrInvalidRequest, n, MaxSecretLength)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("keystore: generate secret: %w", err)
	}
	return buf, nil
}

func (s *Sealed) seal(plain, ad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, ad), nil
}

func (s *Sealed) open(data, ad []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(data) < ns+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: too short", ErrCorrupt)
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}
