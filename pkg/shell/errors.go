package shell

import (
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

var (
	// ErrClosed is returned once the dispatcher has been closed.
	ErrClosed = errors.New("shell: dispatcher closed")
	// ErrDuplicateRequest means the core issued a request id that is still in
	// flight.
	ErrDuplicateRequest = errors.New("shell: duplicate in-flight request id")
	// ErrUnknownRequest means a result arrived for a request id the
	// dispatcher never issued.
	ErrUnknownRequest = errors.New("shell: result for unknown request id")
)

// ProtocolError reports a violation of the shell/core contract. The chain it
// occurred in is abandoned; other chains are unaffected.
type ProtocolError struct {
	Chain string
	// Op is the step that failed: "process", "resolve", "decode", "view" or
	// "route".
	Op    string
	ID    wire.RequestID
	HasID bool
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.HasID {
		return fmt.Sprintf("shell: protocol error in chain %s (%s, request %d): %v", e.Chain, e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("shell: protocol error in chain %s (%s): %v", e.Chain, e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
