package shell

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
)

// Tracker wraps each effect task in a measured operation. The function it
// returns is called once with the task's outcome.
type Tracker interface {
	TrackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type noopTracker struct{}

func (noopTracker) TrackOperation(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(error)) {
	return ctx, func(error) {}
}

type options struct {
	logger          *slog.Logger
	tracker         Tracker
	onProtocolError func(error)
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithTracker(t Tracker) Option {
	return func(o *options) {
		if t != nil {
			o.tracker = t
		}
	}
}

// WithProtocolErrorHandler installs fn to receive every *ProtocolError. It is
// called on the pump goroutine and must not block.
func WithProtocolErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onProtocolError = fn }
}
