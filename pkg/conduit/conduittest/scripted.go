// Package conduittest provides a scripted core for exercising the shell
// without a real core module.
package conduittest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Mindburn-Labs/effectshell/pkg/wire"
)

// CallKind names which core entry point a Call went through.
type CallKind string

const (
	CallProcess CallKind = "process"
	CallResolve CallKind = "resolve"
	CallView    CallKind = "view"
)

// Call is one recorded invocation of the scripted core.
type Call struct {
	Kind    CallKind
	ID      wire.RequestID
	Payload []byte
}

// Scripted is a fake core. Each hook returns the raw bytes the core would
// return; a nil hook answers with an empty batch (or an empty view). Hooks run
// with no lock held, so they may block to simulate a slow core.
type Scripted struct {
	OnProcess func(event []byte) ([]byte, error)
	OnResolve func(id wire.RequestID, response []byte) ([]byte, error)
	OnView    func() ([]byte, error)

	mu    sync.Mutex
	calls []Call

	inside     atomic.Int32
	overlapped atomic.Bool
}

// Batch encodes reqs as the core would.
func Batch(reqs ...wire.Request) []byte {
	return wire.Marshal(wire.Batch(reqs))
}

func (s *Scripted) enter(c Call) func() {
	if s.inside.Add(1) > 1 {
		s.overlapped.Store(true)
	}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
	return func() { s.inside.Add(-1) }
}

func (s *Scripted) Process(_ context.Context, event []byte) ([]byte, error) {
	defer s.enter(Call{Kind: CallProcess, Payload: clone(event)})()
	if s.OnProcess == nil {
		return Batch(), nil
	}
	return s.OnProcess(event)
}

func (s *Scripted) Resolve(_ context.Context, id wire.RequestID, response []byte) ([]byte, error) {
	defer s.enter(Call{Kind: CallResolve, ID: id, Payload: clone(response)})()
	if s.OnResolve == nil {
		return Batch(), nil
	}
	return s.OnResolve(id, response)
}

func (s *Scripted) View(context.Context) ([]byte, error) {
	defer s.enter(Call{Kind: CallView})()
	if s.OnView == nil {
		return nil, nil
	}
	return s.OnView()
}

// Calls returns a copy of every call recorded so far, in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (s *Scripted) CallsOf(kind CallKind) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Overlapped reports whether two calls were ever inside the core at once.
func (s *Scripted) Overlapped() bool { return s.overlapped.Load() }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
