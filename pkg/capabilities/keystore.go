package capabilities

import (
	"context"
	"errors"

	"github.com/Mindburn-Labs/effectshell/pkg/keystore"
	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// KeyStoreAdapter answers KeyStore effects from a keystore.Sealed.
type KeyStoreAdapter struct {
	keys *keystore.Sealed
}

func NewKeyStoreAdapter(keys *keystore.Sealed) *KeyStoreAdapter {
	return &KeyStoreAdapter{keys: keys}
}

func (a *KeyStoreAdapter) Execute(ctx context.Context, op wire.KeyStoreOperation) wire.KeyStoreResult {
	switch op := op.(type) {
	case wire.KSGet:
		v, ok, err := a.keys.Get(ctx, op.Purpose, op.ID)
		if err != nil {
			return keyStoreFailure(err)
		}
		return wire.KeyStoreOk(wire.KSRetrieved{Key: optional(v, ok)})

	case wire.KSSet:
		if err := a.keys.Set(ctx, op.Purpose, op.ID, op.Data); err != nil {
			return keyStoreFailure(err)
		}
		return wire.KeyStoreOk(wire.KSWasSet{})

	case wire.KSDelete:
		if err := a.keys.Delete(ctx, op.Purpose, op.ID); err != nil {
			return keyStoreFailure(err)
		}
		return wire.KeyStoreOk(wire.KSDeleted{})

	case wire.KSGenerateSecret:
		secret, err := a.keys.GenerateSecret(op.Length)
		if err != nil {
			return keyStoreFailure(err)
		}
		return wire.KeyStoreOk(wire.KSGeneratedSecret{Secret: secret})

	default:
		return wire.KeyStoreFailed(wire.KSErrorInvalidRequest, "unsupported operation")
	}
}

func keyStoreFailure(err error) wire.KeyStoreResult {
	if errors.Is(err, keystore.ErrInvalidRequest) {
		return wire.KeyStoreFailed(wire.KSErrorInvalidRequest, err.Error())
	}
	return wire.KeyStoreFailed(wire.KSErrorInvalidResponse, err.Error())
}
