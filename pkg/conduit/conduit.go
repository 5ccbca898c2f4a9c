// Package conduit connects the shell to the application core.
//
// The core is opaque: it accepts serialized events and responses and returns
// serialized request batches and views. A Conduit is not assumed to be
// reentrant; wrap implementations that are not safe for concurrent use with
// Serialized.
package conduit

import (
	"context"
	"errors"
	"sync"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// ErrClosed is returned by calls made after the conduit has been closed.
var ErrClosed = errors.New("conduit: closed")

// Conduit is the three-call surface of the core.
type Conduit interface {
	// Process delivers a serialized event and returns a serialized batch of
	// requests.
	Process(ctx context.Context, event []byte) ([]byte, error)
	// Resolve delivers the serialized result for request id and returns a
	// serialized batch of follow-up requests.
	Resolve(ctx context.Context, id wire.RequestID, response []byte) ([]byte, error)
	// View returns the serialized current view.
	View(ctx context.Context) ([]byte, error)
}

type serialized struct {
	mu    sync.Mutex
	inner Conduit
}

// Serialized returns a Conduit that admits one call into c at a time.
func Serialized(c Conduit) Conduit {
	if s, ok := c.(*serialized); ok {
		return s
	}
	return &serialized{inner: c}
}

func (s *serialized) Process(ctx context.Context, event []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Process(ctx, event)
}

func (s *serialized) Resolve(ctx context.Context, id wire.RequestID, response []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Resolve(ctx, id, response)
}

func (s *serialized) View(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.View(ctx)
}
