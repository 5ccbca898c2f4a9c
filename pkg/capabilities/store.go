package capabilities

import (
	"context"

	"github.com/Mindburn-Labs/effectshell/pkg/objectstore"
	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// StoreAdapter answers Store effects from an objectstore.Store.
type StoreAdapter struct {
	objects objectstore.Store
}

func NewStoreAdapter(objects objectstore.Store) *StoreAdapter {
	return &StoreAdapter{objects: objects}
}

func (a *StoreAdapter) Execute(ctx context.Context, op wire.StoreOperation) wire.StoreResult {
	switch op := op.(type) {
	case wire.StoreSave:
		if err := a.objects.Save(ctx, op.CatalogName, op.ID, op.Data); err != nil {
			return wire.StoreFailed(err)
		}
		return wire.StoreOk(wire.StoreSaved{})

	case wire.StoreList:
		items, err := a.objects.List(ctx, op.CatalogName)
		if err != nil {
			return wire.StoreFailed(err)
		}
		entries := make([]wire.StoreItem, len(items))
		for i, it := range items {
			entries[i] = wire.StoreItem{ID: it.ID, Data: it.Data}
		}
		return wire.StoreOk(wire.StoreListed{Entries: entries})

	case wire.StoreDelete:
		if err := a.objects.Delete(ctx, op.CatalogName, op.ID); err != nil {
			return wire.StoreFailed(err)
		}
		return wire.StoreOk(wire.StoreDeleted{})

	default:
		return wire.StoreResult{Err: &wire.StoreError{Message: "unsupported operation"}}
	}
}
