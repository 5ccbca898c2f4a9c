// Package kv implements the flat key-value namespace behind the KeyValue
// effect.
//
// ListKeys pages through keys with an opaque uint64 cursor. Zero starts an
// enumeration and a returned zero ends it. Enumeration always terminates,
// even while keys are being written, and every key present for the whole
// enumeration is returned at least once. Keys written after it started may
// or may not appear.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// DefaultPageSize is the number of keys ListKeys returns per page when the
// store was not configured otherwise.
const DefaultPageSize = 100

// ErrCursorNotFound is returned by ListKeys for a cursor the store did not
// issue or can no longer resume.
var ErrCursorNotFound = errors.New("kv: cursor not found")

// Store is the contract every backend implements. Values are opaque bytes;
// a missing key is reported with ok == false rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set writes value and returns the value it replaced.
	Set(ctx context.Context, key string, value []byte) (prev []byte, had bool, err error)
	// Delete removes key and returns the value it held.
	Delete(ctx context.Context, key string) (prev []byte, had bool, err error)
	Exists(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context, prefix string, cursor uint64) (keys []string, next uint64, err error)
}

// Memory and SQLite cursors pack the enumeration's high-water mark (the
// largest insertion sequence that existed when it started) with the last
// sequence returned. Sequences of live keys never change, so resuming after
// pos and stopping at hwm visits each surviving key exactly once and always
// ends.
func packCursor(hwm, pos uint64) uint64 { return hwm<<32 | pos }

func unpackCursor(c uint64) (hwm, pos uint64) { return c >> 32, c & 0xFFFFFFFF }

const maxSeq = 0xFFFFFFFF

// resolveCursor validates cursor against the largest sequence the store has
// ever issued and returns the window to scan.
func resolveCursor(cursor, issued, current uint64) (hwm, pos uint64, err error) {
	if cursor == 0 {
		return current, 0, nil
	}
	hwm, pos = unpackCursor(cursor)
	if hwm == 0 || pos > hwm || hwm > issued {
		return 0, 0, fmt.Errorf("%w: %d", ErrCursorNotFound, cursor)
	}
	return hwm, pos, nil
}

func pageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}
