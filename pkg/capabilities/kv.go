package capabilities

import (
	"context"
	"errors"

	"github.com/Mindburn-Labs/effectshell/pkg/kv"
	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// KeyValueAdapter answers KeyValue effects from a kv.Store.
type KeyValueAdapter struct {
	store kv.Store
}

func NewKeyValueAdapter(store kv.Store) *KeyValueAdapter {
	return &KeyValueAdapter{store: store}
}

func optional(b []byte, ok bool) wire.Value {
	if !ok {
		return wire.Value{}
	}
	if b == nil {
		b = []byte{}
	}
	return wire.Some(b)
}

func (a *KeyValueAdapter) Execute(ctx context.Context, op wire.KeyValueOperation) wire.KeyValueResult {
	switch op := op.(type) {
	case wire.KVGet:
		v, ok, err := a.store.Get(ctx, op.Key)
		if err != nil {
			return kvFailure(err)
		}
		return wire.KeyValueOk(wire.KVGot{Value: optional(v, ok)})

	case wire.KVSet:
		prev, had, err := a.store.Set(ctx, op.Key, op.Value)
		if err != nil {
			return kvFailure(err)
		}
		return wire.KeyValueOk(wire.KVWasSet{Previous: optional(prev, had)})

	case wire.KVDelete:
		prev, had, err := a.store.Delete(ctx, op.Key)
		if err != nil {
			return kvFailure(err)
		}
		return wire.KeyValueOk(wire.KVDeleted{Previous: optional(prev, had)})

	case wire.KVExists:
		ok, err := a.store.Exists(ctx, op.Key)
		if err != nil {
			return kvFailure(err)
		}
		return wire.KeyValueOk(wire.KVExistence{IsPresent: ok})

	case wire.KVListKeys:
		keys, next, err := a.store.ListKeys(ctx, op.Prefix, op.Cursor)
		if err != nil {
			return kvFailure(err)
		}
		if keys == nil {
			keys = []string{}
		}
		return wire.KeyValueOk(wire.KVKeys{Keys: keys, NextCursor: next})

	default:
		return wire.KeyValueFailed(wire.KVErrorOther, "unsupported operation")
	}
}

func kvFailure(err error) wire.KeyValueResult {
	switch {
	case errors.Is(err, kv.ErrCursorNotFound):
		return wire.KeyValueFailed(wire.KVErrorCursorNotFound, "")
	case isTimeout(err):
		return wire.KeyValueFailed(wire.KVErrorTimeout, "")
	default:
		return wire.KeyValueFailed(wire.KVErrorIO, err.Error())
	}
}
