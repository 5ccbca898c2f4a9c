// Package capabilities holds the effect handlers the dispatcher routes to:
// an HTTP client, a server-sent-events client, and adapters that answer
// Store, KeyValue and KeyStore operations from their backends. Every handler
// reports failures as error results, never as panics.
package capabilities

import "github.com/Mindburn-Labs/effectshell/pkg/shell"

var (
	_ shell.HTTPHandler     = (*HTTPClient)(nil)
	_ shell.SSEHandler      = (*SSEClient)(nil)
	_ shell.StoreHandler    = (*StoreAdapter)(nil)
	_ shell.KeyValueHandler = (*KeyValueAdapter)(nil)
	_ shell.KeyStoreHandler = (*KeyStoreAdapter)(nil)
)
