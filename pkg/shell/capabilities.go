package shell

import (
	"context"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// HTTPHandler performs one HTTP exchange. Failures are reported in the
// result, never by panicking or blocking past ctx.
type HTTPHandler interface {
	Do(ctx context.Context, req wire.HTTPRequest) wire.HTTPResult
}

// SSEHandler runs a server-sent-events subscription, calling emit for every
// item in receipt order from a single goroutine. It returns after emitting a
// terminal item (SSEDone or SSEError) or once ctx is done.
type SSEHandler interface {
	Subscribe(ctx context.Context, req wire.SSERequest, emit func(wire.SSEResponse))
}

type StoreHandler interface {
	Execute(ctx context.Context, op wire.StoreOperation) wire.StoreResult
}

type KeyValueHandler interface {
	Execute(ctx context.Context, op wire.KeyValueOperation) wire.KeyValueResult
}

type KeyStoreHandler interface {
	Execute(ctx context.Context, op wire.KeyStoreOperation) wire.KeyStoreResult
}

// Capabilities is the set of effect handlers available to the core. A nil
// handler answers every request of its kind with an error result.
type Capabilities struct {
	HTTP     HTTPHandler
	SSE      SSEHandler
	Store    StoreHandler
	KeyValue KeyValueHandler
	KeyStore KeyStoreHandler
}
